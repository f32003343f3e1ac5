package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"txflow/internal/infrastructure/persistence/gormtx"
	"txflow/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "txflow/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "txflow/internal/infrastructure/persistence/sqlite/uow"
	"txflow/internal/transactional"
)

const mixedScenario = `
version = 1
name = "mixed"

[[units]]
name = "outer"
propagation = "required"

  [[units.units]]
  name = "audit"
  propagation = "requires_new"
  message = "audit"

  [[units.units]]
  name = "post"
  message = "post"

  [[units.units]]
  name = "bad-item"
  propagation = "nested"
  message = "bad"
  fail = true
  recover = true

[[units]]
name = "doomed"
message = "doomed"
fail = true
`

func setupRunner(t *testing.T, opts ...transactional.ManagerOption) *Runner {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "scenario.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&model.Post{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	opts = append(opts, transactional.WithDataSourceRegistered(transactional.DefaultDataSource, gormtx.NewDataSource(db)))
	m := transactional.NewManager(opts...)
	return NewRunner(sqliteuow.NewUnitOfWork(m), sqliterepo.NewPostRepository(db, ""))
}

func TestRunMixedScenario(t *testing.T) {
	sc, err := Parse([]byte(mixedScenario))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	rep, err := setupRunner(t).Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if want := []string{"audit", "post"}; !reflect.DeepEqual(rep.Persisted, want) {
		t.Fatalf("Persisted = %v, want %v", rep.Persisted, want)
	}

	byPath := make(map[string]UnitResult, len(rep.Units))
	for _, unit := range rep.Units {
		byPath[unit.Path] = unit
	}
	outer, audit, bad := byPath["outer"], byPath["outer/audit"], byPath["outer/bad-item"]
	if outer.Err != nil || outer.TxID == "" {
		t.Fatalf("outer = %+v", outer)
	}
	if audit.TxID == "" || audit.TxID == outer.TxID {
		t.Fatalf("audit did not run in its own transaction: %+v", audit)
	}
	if byPath["outer/post"].TxID != outer.TxID {
		t.Fatalf("post did not join the outer transaction")
	}
	if !bad.Savepoint || !bad.Recovered || !errors.Is(bad.Err, ErrUnitFailed) {
		t.Fatalf("bad-item = %+v", bad)
	}
	if doomed := byPath["doomed"]; !errors.Is(doomed.Err, ErrUnitFailed) || doomed.Recovered {
		t.Fatalf("doomed = %+v", doomed)
	}

	wantHooks := []HookEvent{
		{Unit: "outer/audit", Event: "commit"},
		{Unit: "outer/audit", Event: "complete"},
		{Unit: "outer", Event: "commit"},
		{Unit: "outer/post", Event: "commit"},
		{Unit: "outer/bad-item", Event: "commit"},
		{Unit: "outer", Event: "complete"},
		{Unit: "outer/post", Event: "complete"},
		{Unit: "outer/bad-item", Event: "complete"},
		{Unit: "doomed", Event: "rollback"},
		{Unit: "doomed", Event: "complete"},
	}
	if !reflect.DeepEqual(rep.Hooks, wantHooks) {
		t.Fatalf("Hooks = %+v", rep.Hooks)
	}

	out := Render(rep)
	for _, fragment := range []string{"Scenario mixed", "outer/bad-item", "recovered", "doomed"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("Render() missing %q:\n%s", fragment, out)
		}
	}
}

func TestRunRecordsPolicyViolations(t *testing.T) {
	sc, err := Parse([]byte(`
version = 1

[[units]]
name = "outer"

  [[units.units]]
  name = "never"
  propagation = "never"
  message = "refused"
  recover = true

  [[units.units]]
  name = "hidden"
  propagation = "not_supported"
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	rep, err := setupRunner(t).Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rep.Units) != 3 {
		t.Fatalf("Units = %+v", rep.Units)
	}
	if never := rep.Units[1]; !errors.Is(never.Err, transactional.ErrPolicyViolation) || never.Wrote {
		t.Fatalf("never = %+v", never)
	}
	if hidden := rep.Units[2]; hidden.Err != nil || hidden.TxID != "" {
		t.Fatalf("hidden = %+v", hidden)
	}
	if len(rep.Persisted) != 0 {
		t.Fatalf("Persisted = %v", rep.Persisted)
	}
}

func TestParseRejectsInvalidScenarios(t *testing.T) {
	cases := map[string]string{
		"version":     "version = 2\n[[units]]\nname = \"a\"\n",
		"empty":       "version = 1\n",
		"propagation": "version = 1\n[[units]]\npropagation = \"sometimes\"\n",
		"isolation":   "version = 1\n[[units]]\nisolation = \"snapshot\"\n",
		"syntax":      "version = \n",
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("Parse(%s) expected error", name)
		}
	}

	_, err := Parse([]byte("version = 1\n[[units]]\n  [[units.units]]\n  propagation = \"bogus\"\n"))
	if !errors.Is(err, transactional.ErrInvalidOption) || !strings.Contains(err.Error(), "units[0].units[0]") {
		t.Fatalf("Parse(nested) error = %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.toml")
	if err := os.WriteFile(path, []byte(mixedScenario), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	sc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if sc.Name != "mixed" || len(sc.Units) != 2 || len(sc.Units[0].Units) != 3 {
		t.Fatalf("LoadFile() = %+v", sc)
	}
	if p := sc.Units[0].Units[0].Propagation; p == nil || *p != transactional.RequiresNew {
		t.Fatalf("audit propagation = %v", p)
	}
	if sc.Units[0].Units[1].Propagation != nil || sc.Units[0].Units[1].Isolation != nil {
		t.Fatalf("post unit must leave propagation and isolation to the defaults")
	}
	if _, err := LoadFile(" "); err == nil {
		t.Fatalf("LoadFile() expected error for empty path")
	}
}

func TestParseYAML(t *testing.T) {
	sc, err := ParseYAML([]byte(`
version: 1
name: yaml
units:
  - name: outer
    units:
      - name: inner
        propagation: nested
        isolation: serializable
        message: hello
        fail: true
        recover: true
`))
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}
	inner := sc.Units[0].Units[0]
	if sc.Name != "yaml" || inner.Propagation == nil || *inner.Propagation != transactional.Nested ||
		inner.Isolation == nil || *inner.Isolation != transactional.IsolationSerializable {
		t.Fatalf("ParseYAML() = %+v", sc)
	}
	if !inner.Fail || !inner.Recover || inner.Message != "hello" {
		t.Fatalf("inner = %+v", inner)
	}

	path := filepath.Join(t.TempDir(), "scenario.yml")
	if err := os.WriteFile(path, []byte("version: 3\nunits:\n  - name: a\n"), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("LoadFile() expected version error for yaml")
	}
}

func TestUnitsWithoutPropagationUseManagerDefaults(t *testing.T) {
	sc, err := Parse([]byte(`
version = 1

[[units]]
name = "inherits"
message = "inherits"

[[units]]
name = "explicit"
propagation = "required"
message = "explicit"
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	runner := setupRunner(t, transactional.WithDefaults(transactional.WithPropagation(transactional.Mandatory)))
	rep, err := runner.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if inherits := rep.Units[0]; !errors.Is(inherits.Err, transactional.ErrPolicyViolation) || inherits.Propagation != "default" {
		t.Fatalf("inherits = %+v", inherits)
	}
	if explicit := rep.Units[1]; explicit.Err != nil || explicit.TxID == "" {
		t.Fatalf("explicit = %+v", explicit)
	}
	if want := []string{"explicit"}; !reflect.DeepEqual(rep.Persisted, want) {
		t.Fatalf("Persisted = %v, want %v", rep.Persisted, want)
	}
}
