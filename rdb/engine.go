package rdb

import (
	"context"
	"io"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hatlonely/tinymodel/log"
	"github.com/hatlonely/tinymodel/rdb/database"
	"github.com/hatlonely/tinymodel/rdb/query"
	"github.com/hatlonely/tinymodel/rdb/result"
	"github.com/hatlonely/tinymodel/rdb/schema"
)

// EngineOptions 引擎的根配置
//
//	database:
//	  driver: mysql
//	  host: localhost
//	  database: tinymodel
//	logger:
//	  level: debug
//	schemas: schema.yaml
//	observe:
//	  enableMetrics: true
type EngineOptions struct {
	Database database.SQLOptions `cfg:"database"`
	Logger   *log.SLogOptions    `cfg:"logger"`
	// Schemas 实体声明文件路径
	Schemas string         `cfg:"schemas"`
	Observe ObserveOptions `cfg:"observe"`
}

// Engine 持有表结构注册表与数据库连接，所有 Model 共享
type Engine struct {
	registry *schema.Registry
	db       database.Database
	logger   log.Logger
	observer *observer
	// closer 由 NewEngineWithOptions 创建的日志输出器
	closer io.Closer
}

type engineOptions struct {
	logger     log.Logger
	observe    ObserveOptions
	registerer prometheus.Registerer
}

type EngineOption func(*engineOptions)

func WithLogger(logger log.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

func WithObserve(options ObserveOptions) EngineOption {
	return func(o *engineOptions) {
		o.observe = options
	}
}

// WithRegisterer 指定指标注册的 registry，默认为 prometheus.DefaultRegisterer
func WithRegisterer(registerer prometheus.Registerer) EngineOption {
	return func(o *engineOptions) {
		o.registerer = registerer
	}
}

// NewEngine 使用外部传入的数据库连接和注册表创建引擎
func NewEngine(db database.Database, registry *schema.Registry, opts ...EngineOption) (*Engine, error) {
	if db == nil {
		return nil, errors.New("database is nil")
	}
	if registry == nil {
		return nil, errors.New("registry is nil")
	}

	options := &engineOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = log.Default()
	}

	logger := options.logger.WithGroup("rdb")
	obs, err := newObserver(&options.observe, logger, options.registerer)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create observer")
	}

	return &Engine{
		registry: registry,
		db:       db,
		logger:   logger,
		observer: obs,
	}, nil
}

// NewEngineWithOptions 按配置打开数据库、加载实体声明并创建引擎
func NewEngineWithOptions(options *EngineOptions, opts ...EngineOption) (*Engine, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	logger, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create logger")
	}
	var closer io.Closer
	if c, ok := logger.(io.Closer); ok && options.Logger != nil {
		closer = c
	}
	closeLogger := func() {
		if closer != nil {
			_ = closer.Close()
		}
	}

	registry := schema.NewRegistry()
	if options.Schemas != "" {
		if err := registry.LoadFile(options.Schemas); err != nil {
			closeLogger()
			return nil, errors.WithMessage(err, "failed to load schemas")
		}
	}

	db, err := database.NewSQLWithOptions(&options.Database)
	if err != nil {
		closeLogger()
		return nil, errors.WithMessage(err, "failed to open database")
	}

	opts = append([]EngineOption{WithLogger(logger), WithObserve(options.Observe)}, opts...)
	engine, err := NewEngine(db, registry, opts...)
	if err != nil {
		_ = db.Close()
		closeLogger()
		return nil, err
	}
	engine.closer = closer
	return engine, nil
}

func (e *Engine) Registry() *schema.Registry {
	return e.registry
}

func (e *Engine) Database() database.Database {
	return e.db
}

// Model 返回 kind 对应的模型，kind 未注册时返回 schema.ErrUnknownKind
func (e *Engine) Model(kind string) (*Model, error) {
	s, err := e.registry.Schema(kind)
	if err != nil {
		return nil, err
	}
	return &Model{engine: e, schema: s, logger: e.logger.With("kind", kind)}, nil
}

// MustModel 与 Model 相同，出错时 panic，适用于启动阶段
func (e *Engine) MustModel(kind string) *Model {
	m, err := e.Model(kind)
	if err != nil {
		panic(err)
	}
	return m
}

type migrator interface {
	Migrate(ctx context.Context, tables ...*schema.Schema) error
}

// Migrate 为所有已注册的实体建表，已存在的表保持不变
func (e *Engine) Migrate(ctx context.Context) error {
	m, ok := e.db.(migrator)
	if !ok {
		return errors.New("database does not support migrate")
	}

	var tables []*schema.Schema
	for _, kind := range e.registry.Kinds() {
		s, err := e.registry.Schema(kind)
		if err != nil {
			return err
		}
		tables = append(tables, s)
	}
	return m.Migrate(ctx, tables...)
}

// Close 关闭数据库连接和日志输出器，返回第一个错误
func (e *Engine) Close() error {
	err := e.db.Close()
	if e.closer != nil {
		if cerr := e.closer.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "failed to close logger")
		}
	}
	return err
}

// Model 一种实体的读写入口
type Model struct {
	engine *Engine
	schema *schema.Schema
	logger log.Logger
}

func (m *Model) Schema() *schema.Schema {
	return m.schema
}

// Fetch 按条件查询实体，joins 描述需要一并取回的关联表
//
// 条件在访问数据库前校验，不合法时返回 InvalidConditions 且不产生任何查询
func (m *Model) Fetch(ctx context.Context, cond query.Node, joins ...*query.Join) *Result {
	return m.engine.observer.observe(ctx, m.schema.Kind, "fetch", func(ctx context.Context) *Result {
		return m.fetch(ctx, cond, joins...)
	})
}

func (m *Model) fetch(ctx context.Context, cond query.Node, joins ...*query.Join) *Result {
	if res := m.validateConditions(ctx, cond); res != nil {
		return res
	}

	plan, err := query.NewPlan(m.engine.registry, m.schema.Kind, joins...)
	if err != nil {
		m.logger.ErrorContext(ctx, "build join plan failed", "error", err.Error())
		return internal(errors.WithMessage(err, "build join plan failed"))
	}

	stmt, err := query.Select(plan, cond)
	if err != nil {
		return internal(err)
	}
	m.logger.DebugContext(ctx, "fetch", "sql", stmt.SQL, "args", len(stmt.Args))

	rows, err := m.engine.db.Query(ctx, stmt)
	if err != nil {
		return m.driverFailure(ctx, "fetch", err)
	}
	defer rows.Close()

	reconstructor := result.NewReconstructor(plan)
	entities, err := reconstructor.Reconstruct(rows)
	stats := reconstructor.Stats()
	m.engine.observer.observeRows(m.schema.Kind, stats.Rows, stats.Skipped)
	if err != nil {
		return m.driverFailure(ctx, "fetch", err)
	}

	res := success()
	res.Entities = entities
	return res
}

// Update 按条件更新字段，条件不能为空
//
// 字段值和条件都在执行前校验，字段错误返回 InvalidData，条件错误返回 InvalidConditions
func (m *Model) Update(ctx context.Context, fields map[string]any, cond query.Node) *Result {
	return m.engine.observer.observe(ctx, m.schema.Kind, "update", func(ctx context.Context) *Result {
		return m.update(ctx, fields, cond)
	})
}

func (m *Model) update(ctx context.Context, fields map[string]any, cond query.Node) *Result {
	if len(fields) == 0 {
		m.logger.WarnContext(ctx, "update rejected", "reason", "no fields")
		return failure(InvalidData, schema.Errors{})
	}
	if errs := m.schema.ValidateFields(fields); len(errs) > 0 {
		m.logger.WarnContext(ctx, "update rejected", "errors", errs)
		return failure(InvalidData, errs)
	}
	if res := m.validateConditions(ctx, cond); res != nil {
		return res
	}

	stmt, err := query.Update(m.schema, fields, cond)
	if err != nil {
		return internal(err)
	}
	m.logger.DebugContext(ctx, "update", "sql", stmt.SQL, "args", len(stmt.Args))

	execResult, err := m.engine.db.Exec(ctx, stmt)
	if err != nil {
		return m.driverFailure(ctx, "update", err)
	}

	res := success()
	res.Affected = execResult.RowsAffected
	return res
}

// Insert 插入一条记录，返回数据库分配的标识
//
// 缺少的 notnull 列和非法的字段值都返回 InvalidData；值为 nil 的字段不会写入
func (m *Model) Insert(ctx context.Context, record Record) *Result {
	return m.engine.observer.observe(ctx, m.schema.Kind, "insert", func(ctx context.Context) *Result {
		return m.insert(ctx, record)
	})
}

// InsertStruct 将带 rdb tag 的结构体作为记录插入
func (m *Model) InsertStruct(ctx context.Context, v any) *Result {
	return m.Insert(ctx, RecordFromStruct(v))
}

func (m *Model) insert(ctx context.Context, record Record) *Result {
	errs := m.schema.ValidateFields(record).Merge(m.schema.ValidateComplete(record))
	if len(errs) > 0 {
		m.logger.WarnContext(ctx, "insert rejected", "errors", errs)
		return failure(InvalidData, errs)
	}

	stmt, err := query.Insert(m.schema, record)
	if err != nil {
		return internal(err)
	}
	m.logger.DebugContext(ctx, "insert", "sql", stmt.SQL, "args", len(stmt.Args))

	execResult, err := m.engine.db.Exec(ctx, stmt)
	if err != nil {
		return m.driverFailure(ctx, "insert", err)
	}

	res := success()
	res.InsertID = execResult.LastInsertID
	return res
}

// validateConditions 条件合法时返回 nil
func (m *Model) validateConditions(ctx context.Context, cond query.Node) *Result {
	errs, err := query.Validate(cond, m.schema)
	if err != nil {
		m.logger.WarnContext(ctx, "conditions rejected", "error", err.Error())
		return &Result{Status: InvalidConditions, Errors: schema.Errors{}, err: err}
	}
	if len(errs) > 0 {
		m.logger.WarnContext(ctx, "conditions rejected", "errors", errs)
		return failure(InvalidConditions, errs)
	}
	return nil
}

// driverFailure 数据库错误不做重试或解释，原样包装后返回 InternalError
func (m *Model) driverFailure(ctx context.Context, operation string, err error) *Result {
	args := []any{"operation", operation, "error", err.Error()}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		args = append(args, "mysqlErrno", mysqlErr.Number)
	}
	m.logger.ErrorContext(ctx, "database failure", args...)
	return internal(errors.Wrapf(err, "%s %s failed", operation, m.schema.Table))
}
