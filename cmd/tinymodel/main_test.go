package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func writeConfig(dir string, driver string) string {
	schemaData, err := os.ReadFile("schema.yaml")
	So(err, ShouldBeNil)
	schemaPath := filepath.Join(dir, "schema.yaml")
	So(os.WriteFile(schemaPath, schemaData, 0644), ShouldBeNil)

	config := "database:\n" +
		"  driver: " + driver + "\n" +
		"  database: " + filepath.Join(dir, "demo.db") + "\n" +
		"  maxConns: 1\n" +
		"logger:\n" +
		"  level: ${TINYMODEL_TEST_LEVEL}\n" +
		"  output:\n" +
		"    type: file\n" +
		"    file:\n" +
		"      path: " + filepath.Join(dir, "demo.log") + "\n" +
		"schemas: " + schemaPath + "\n"
	configPath := filepath.Join(dir, "config.yaml")
	So(os.WriteFile(configPath, []byte(config), 0644), ShouldBeNil)
	return configPath
}

func run(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDDL(t *testing.T) {
	Convey("ddl 输出建表语句", t, func() {
		dir := t.TempDir()
		configPath := writeConfig(dir, "sqlite3")

		out, err := run("ddl", "--config", configPath, "--dialect", "mysql")
		So(err, ShouldBeNil)
		So(out, ShouldContainSubstring, "CREATE TABLE IF NOT EXISTS `users`")
		So(out, ShouldContainSubstring, "`userid` int unsigned auto_increment not null primary key")
		So(out, ShouldContainSubstring, "`username` varchar(20) not null")
		So(out, ShouldContainSubstring, "CREATE TABLE IF NOT EXISTS `favourites`")

		out, err = run("ddl", "--config", configPath, "--drop")
		So(err, ShouldBeNil)
		So(out, ShouldContainSubstring, `DROP TABLE IF EXISTS "things"`)
		So(out, ShouldContainSubstring, `"thingid" integer primary key autoincrement not null`)
	})
}

func TestSchemasRelativeToConfig(t *testing.T) {
	Convey("schemas 相对配置文件所在目录解析", t, func() {
		dir := t.TempDir()
		schemaData := "Gadget:\n  gadgetid: id\n  gadgetname: varchar notnull\n"
		So(os.WriteFile(filepath.Join(dir, "schema.yaml"), []byte(schemaData), 0644), ShouldBeNil)
		configPath := filepath.Join(dir, "config.yaml")
		config := "database:\n  driver: sqlite3\nschemas: schema.yaml\n"
		So(os.WriteFile(configPath, []byte(config), 0644), ShouldBeNil)

		out, err := run("ddl", "--config", configPath)
		So(err, ShouldBeNil)
		So(out, ShouldContainSubstring, `CREATE TABLE IF NOT EXISTS "gadgets"`)
		So(out, ShouldNotContainSubstring, "users")
	})
}

func TestDemo(t *testing.T) {
	Convey("demo 插入并取回嵌套对象", t, func() {
		dir := t.TempDir()
		envPath := filepath.Join(dir, "test.env")
		So(os.WriteFile(envPath, []byte("TINYMODEL_TEST_LEVEL=debug\n"), 0644), ShouldBeNil)
		configPath := writeConfig(dir, "sqlite3")

		out, err := run("demo", "--config", configPath, "--env", envPath)
		So(err, ShouldBeNil)
		So(out, ShouldContainSubstring, "geoff was inserted with id 1")
		So(out, ShouldContainSubstring, `"thingname": "squishy"`)
		So(out, ShouldContainSubstring, "joined to the thing itself: squishy")

		logData, err := os.ReadFile(filepath.Join(dir, "demo.log"))
		So(err, ShouldBeNil)
		So(string(logData), ShouldContainSubstring, "SELECT")
	})

	Convey("配置错误", t, func() {
		_, err := run("demo", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
		So(err, ShouldNotBeNil)

		_, err = run("ddl", "--config", "config.yaml", "--env", filepath.Join(t.TempDir(), "missing.env"))
		So(err, ShouldNotBeNil)
	})
}
