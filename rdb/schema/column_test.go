package schema

import (
	"math"
	"strings"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseColumn(t *testing.T) {
	Convey("测试 ParseColumn 方法", t, func() {
		Convey("解析带限制的 varchar", func() {
			c, err := ParseColumn("username", "varchar alphanumeric maxlength=20 notnull")
			So(err, ShouldBeNil)
			So(c.Name, ShouldEqual, "username")
			So(c.Type, ShouldEqual, ColumnTypeVarchar)
			So(c.Alphanumeric, ShouldBeTrue)
			So(c.NotNull, ShouldBeTrue)
			So(c.MaxLength, ShouldEqual, 20)
		})

		Convey("char 与 varchar 等价", func() {
			c, err := ParseColumn("password", "char maxlength=32")
			So(err, ShouldBeNil)
			So(c.Type, ShouldEqual, ColumnTypeVarchar)
		})

		Convey("max_length 写法", func() {
			c, err := ParseColumn("bio", "text max_length=255")
			So(err, ShouldBeNil)
			So(c.MaxLength, ShouldEqual, 255)
		})

		Convey("id 隐含 positive 和 notnull", func() {
			c, err := ParseColumn("userid", "id")
			So(err, ShouldBeNil)
			So(c.IsIdentity(), ShouldBeTrue)
			So(c.Positive, ShouldBeTrue)
			So(c.NotNull, ShouldBeTrue)
			So(c.String(), ShouldEqual, "id")
		})

		Convey("非法定义", func() {
			for _, def := range []string{"", "blob", "int shiny", "varchar maxlength=abc", "varchar maxlength=0", "int colour=red"} {
				_, err := ParseColumn("c", def)
				So(errors.Is(err, ErrInvalidDefinition), ShouldBeTrue)
			}
		})

		Convey("String 还原定义", func() {
			c, _ := ParseColumn("homepage", "varchar url maxlength=100")
			So(c.String(), ShouldEqual, "varchar url maxlength=100")
		})
	})
}

func TestColumnSelectExpr(t *testing.T) {
	Convey("测试 SelectExpr 方法", t, func() {
		c, _ := ParseColumn("thingname", "varchar")
		So(c.SelectExpr("b"), ShouldEqual, "b.thingname AS b_thingname")

		ts, _ := ParseColumn("date", "timestamp")
		So(ts.SelectExpr("a"), ShouldEqual, "unix_timestamp(a.date) AS a_date")
	})
}

func mustColumn(def string) *Column {
	c, err := ParseColumn("c", def)
	if err != nil {
		panic(err)
	}
	return c
}

func TestColumnValidate(t *testing.T) {
	Convey("测试 Column.Validate 方法", t, func() {
		Convey("null 仅在非 notnull 时合法", func() {
			So(mustColumn("int").Validate(nil, false), ShouldBeTrue)
			So(mustColumn("int notnull").Validate(nil, false), ShouldBeFalse)
			So(mustColumn("id").Validate(nil, false), ShouldBeFalse)
		})

		Convey("int 只接受整数", func() {
			c := mustColumn("int")
			So(c.Validate(7, false), ShouldBeTrue)
			So(c.Validate(int64(-3), false), ShouldBeTrue)
			So(c.Validate(uint8(3), false), ShouldBeTrue)
			So(c.Validate("7", false), ShouldBeFalse)
			So(c.Validate(7.0, false), ShouldBeFalse)
			So(c.Validate(true, false), ShouldBeFalse)
		})

		Convey("positive 要求非负", func() {
			c := mustColumn("int positive")
			So(c.Validate(0, false), ShouldBeTrue)
			So(c.Validate(-2, false), ShouldBeFalse)

			f := mustColumn("float positive")
			So(f.Validate(-3.14159, false), ShouldBeFalse)
			So(f.Validate(3.14, false), ShouldBeTrue)
		})

		Convey("超出 int64 范围的无符号数", func() {
			n, ok := asInt(uint64(math.MaxInt64))
			So(ok, ShouldBeTrue)
			So(n, ShouldEqual, int64(math.MaxInt64))

			_, ok = asInt(uint64(math.MaxUint64))
			So(ok, ShouldBeFalse)
			So(mustColumn("int").Validate(uint64(math.MaxUint64), false), ShouldBeFalse)
			So(mustColumn("int positive").Validate(uint64(math.MaxInt64), false), ShouldBeTrue)

			_, err := mustColumn("int").Normalize(uint64(math.MaxUint64))
			So(err, ShouldNotBeNil)

			f, ok := asFloat(uint64(math.MaxUint64))
			So(ok, ShouldBeTrue)
			So(f, ShouldBeGreaterThan, 0)
			So(mustColumn("float positive").Validate(uint64(math.MaxUint64), false), ShouldBeTrue)
		})

		Convey("float 接受整数", func() {
			c := mustColumn("float")
			So(c.Validate(13, false), ShouldBeTrue)
			So(c.Validate(float32(1.5), false), ShouldBeTrue)
			So(c.Validate("thirteen", false), ShouldBeFalse)
		})

		Convey("字符串类型", func() {
			So(mustColumn("text").Validate(21.0, false), ShouldBeFalse)
			So(mustColumn("varchar").Validate(1, false), ShouldBeFalse)
			So(mustColumn("varchar").Validate("anything at all", false), ShouldBeTrue)
		})

		Convey("alphabetical 与 alphanumeric", func() {
			So(mustColumn("varchar alphabetical").Validate("Octopus", false), ShouldBeTrue)
			So(mustColumn("varchar alphabetical").Validate("non-alphabetical", false), ShouldBeFalse)
			So(mustColumn("varchar alphabetical").Validate("Honey Badger", false), ShouldBeFalse)
			So(mustColumn("varchar alphanumeric").Validate("bhallstein", false), ShouldBeTrue)
			So(mustColumn("varchar alphanumeric").Validate("ab_cd12", false), ShouldBeFalse)
			So(mustColumn("varchar alphanumeric").Validate("", false), ShouldBeFalse)
		})

		Convey("email 与 url", func() {
			So(mustColumn("varchar email").Validate("ben@ben.am", false), ShouldBeTrue)
			So(mustColumn("varchar email").Validate("ben at ben dot am", false), ShouldBeFalse)
			So(mustColumn("varchar url").Validate("http://www.emilia-jet-propulsion-ltd.co.uk", false), ShouldBeTrue)
			So(mustColumn("varchar url").Validate("This is not a valid url", false), ShouldBeFalse)
		})

		Convey("maxlength: varchar 按字符计数，text 按字节计数", func() {
			ascii := strings.Repeat("a", 255)
			multi := strings.Repeat("é", 255)
			So(len(multi), ShouldBeGreaterThan, 255)

			text := mustColumn("text maxlength=255")
			varchar := mustColumn("varchar maxlength=255")
			So(text.Validate(ascii, false), ShouldBeTrue)
			So(text.Validate(multi, false), ShouldBeFalse)
			So(varchar.Validate(ascii, false), ShouldBeTrue)
			So(varchar.Validate(multi, false), ShouldBeTrue)
			So(varchar.Validate(ascii+"a", false), ShouldBeFalse)

			So(mustColumn("varchar maxlength=32").Validate("I am more than thirty two characters long.", false), ShouldBeFalse)
		})

		Convey("timestamp", func() {
			c := mustColumn("timestamp")
			So(c.Validate("2014-11-06 18:15:17", false), ShouldBeTrue)
			So(c.Validate("2014/11/06 18.15.17", false), ShouldBeTrue)
			So(c.Validate("This is not a well formatted date.", false), ShouldBeFalse)
			So(c.Validate(5, false), ShouldBeFalse)

			Convey("recent 条件的值是整数时长", func() {
				So(c.Validate(1209600, true), ShouldBeTrue)
				So(c.Validate("2014-11-06 18:15:17", true), ShouldBeFalse)
			})
		})
	})
}

func TestColumnNormalize(t *testing.T) {
	Convey("测试 Column.Normalize 方法", t, func() {
		v, err := mustColumn("int").Normalize([]byte("42"))
		So(err, ShouldBeNil)
		So(v, ShouldEqual, int64(42))

		v, err = mustColumn("timestamp").Normalize("1415297717.000000")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, int64(1415297717))

		v, err = mustColumn("float").Normalize([]byte("0.5"))
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 0.5)

		v, err = mustColumn("varchar").Normalize([]byte("Octopus"))
		So(err, ShouldBeNil)
		So(v, ShouldEqual, "Octopus")

		v, err = mustColumn("id").Normalize(nil)
		So(err, ShouldBeNil)
		So(v, ShouldBeNil)

		_, err = mustColumn("int").Normalize([]byte("many"))
		So(err, ShouldNotBeNil)
	})
}

func TestColumnSQL(t *testing.T) {
	Convey("测试 Column.SQL 方法", t, func() {
		cases := []struct {
			def      string
			adding   bool
			expected string
		}{
			{"id", false, "`c` int unsigned auto_increment not null"},
			{"id", true, "`c` int unsigned auto_increment not null primary key"},
			{"int positive notnull", false, "`c` int unsigned not null"},
			{"int", false, "`c` int null"},
			{"float", false, "`c` float null"},
			{"varchar maxlength=20 notnull", false, "`c` varchar(20) not null"},
			{"varchar", false, "`c` varchar(255) null"},
			{"text", false, "`c` text null"},
			{"timestamp notnull", false, "`c` timestamp not null"},
		}
		for _, tc := range cases {
			So(mustColumn(tc.def).SQL(DialectMySQL, tc.adding), ShouldEqual, tc.expected)
		}

		So(mustColumn("id").SQL(DialectSQLite, true), ShouldEqual, `"c" integer primary key autoincrement not null`)
	})
}
