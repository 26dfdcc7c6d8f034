package rdb

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hatlonely/tinymodel/log"
)

type ObserveOptions struct {
	// EnableMetrics 是否启用指标收集
	EnableMetrics bool `cfg:"enableMetrics"`

	// EnableLogging 是否为每次调用输出一条汇总日志
	EnableLogging bool `cfg:"enableLogging"`

	// EnableTracing 是否启用分布式追踪
	EnableTracing bool `cfg:"enableTracing"`

	// Name 组件名称标识
	// - Metrics: 作为指标名前缀
	// - Logging: 作为 component 字段值
	// - Tracing: 作为 tracer 名和 span 的 component 属性
	Name string `cfg:"name" def:"tinymodel"`
}

// Metrics 封装 prometheus 指标
type Metrics struct {
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	activeOperations  *prometheus.GaugeVec
	rowCounter        *prometheus.CounterVec
	skippedCounter    *prometheus.CounterVec
}

// NewMetrics 创建指标并注册到 registerer，registerer 为空时使用默认 registry
// 同名指标已注册时复用已有的收集器
func NewMetrics(name string, registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	metrics := &Metrics{
		operationCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_operations_total",
				Help: "Total number of model operations",
			},
			[]string{"kind", "operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_operation_duration_seconds",
				Help:    "Duration of model operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"kind", "operation"},
		),
		activeOperations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: name + "_active_operations",
				Help: "Number of active model operations",
			},
			[]string{"kind", "operation"},
		),
		rowCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_fetched_rows_total",
				Help: "Total number of joined rows read by fetch",
			},
			[]string{"kind"},
		),
		skippedCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_skipped_rows_total",
				Help: "Total number of fan-out rows skipped during reconstruction",
			},
			[]string{"kind"},
		),
	}

	var err error
	if metrics.operationCounter, err = register(registerer, metrics.operationCounter); err != nil {
		return nil, err
	}
	if metrics.operationDuration, err = register(registerer, metrics.operationDuration); err != nil {
		return nil, err
	}
	if metrics.activeOperations, err = register(registerer, metrics.activeOperations); err != nil {
		return nil, err
	}
	if metrics.rowCounter, err = register(registerer, metrics.rowCounter); err != nil {
		return nil, err
	}
	if metrics.skippedCounter, err = register(registerer, metrics.skippedCounter); err != nil {
		return nil, err
	}

	return metrics, nil
}

func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) (C, error) {
	if err := registerer.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return collector, errors.Wrap(err, "register metrics failed")
	}
	return collector, nil
}

// observer 统一的调用观测逻辑，三个维度分别可关闭
type observer struct {
	name    string
	logger  log.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

func newObserver(options *ObserveOptions, logger log.Logger, registerer prometheus.Registerer) (*observer, error) {
	obs := &observer{name: options.Name}
	if obs.name == "" {
		obs.name = "tinymodel"
	}

	if options.EnableLogging {
		obs.logger = logger
	}

	if options.EnableMetrics {
		metrics, err := NewMetrics(obs.name, registerer)
		if err != nil {
			return nil, err
		}
		obs.metrics = metrics
	}

	if options.EnableTracing {
		obs.tracer = otel.Tracer(fmt.Sprintf("rdb.%s", obs.name))
	}

	return obs, nil
}

// observe 包装一次 Fetch/Insert/Update 调用
func (obs *observer) observe(ctx context.Context, kind string, operation string, fn func(context.Context) *Result) *Result {
	start := time.Now()

	var span trace.Span
	if obs.tracer != nil {
		ctx, span = obs.tracer.Start(ctx, fmt.Sprintf("rdb.%s", operation),
			trace.WithAttributes(
				attribute.String("component", obs.name),
				attribute.String("kind", kind),
				attribute.String("operation", operation),
			),
		)
		defer span.End()
	}

	if obs.metrics != nil {
		obs.metrics.activeOperations.WithLabelValues(kind, operation).Inc()
		defer obs.metrics.activeOperations.WithLabelValues(kind, operation).Dec()
	}

	res := fn(ctx)
	duration := time.Since(start)

	if span != nil {
		span.SetAttributes(
			attribute.String("status", res.Status.String()),
			attribute.Int64("duration_ms", duration.Milliseconds()),
		)
		switch operation {
		case "fetch":
			span.SetAttributes(attribute.Int("entities", len(res.Entities)))
		case "update":
			span.SetAttributes(attribute.Int64("affected", res.Affected))
		}
		if err := res.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			if res.Status == InternalError {
				span.RecordError(err)
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if obs.metrics != nil {
		obs.metrics.operationCounter.WithLabelValues(kind, operation, res.Status.String()).Inc()
		obs.metrics.operationDuration.WithLabelValues(kind, operation).Observe(duration.Seconds())
	}

	if obs.logger != nil {
		if res.Status == Success {
			obs.logger.InfoContext(ctx, "model operation completed",
				"component", obs.name,
				"kind", kind,
				"operation", operation,
				"duration_ms", duration.Milliseconds(),
			)
		} else {
			obs.logger.WarnContext(ctx, "model operation rejected",
				"component", obs.name,
				"kind", kind,
				"operation", operation,
				"status", res.Status.String(),
				"duration_ms", duration.Milliseconds(),
			)
		}
	}

	return res
}

// observeRows 记录一次 fetch 读取的行数和因扇出跳过的行数
func (obs *observer) observeRows(kind string, rows int, skipped int) {
	if obs.metrics == nil {
		return
	}
	obs.metrics.rowCounter.WithLabelValues(kind).Add(float64(rows))
	obs.metrics.skippedCounter.WithLabelValues(kind).Add(float64(skipped))
}
