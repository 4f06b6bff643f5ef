package executor

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/lockplane/cfplane/internal/cluster"
	"github.com/lockplane/cfplane/internal/cluster/clustertest"
	"github.com/lockplane/cfplane/internal/planner"
	"github.com/lockplane/cfplane/internal/schema"
	"github.com/lockplane/cfplane/internal/schema/schematest"
)

func mustPlan(t *testing.T, admin cluster.Admin, declared ...schema.Table) *planner.Plan {
	t.Helper()
	p, err := planner.New(admin, planner.Options{})
	if err != nil {
		t.Fatalf("planner.New returned error: %v", err)
	}
	plan, err := p.Plan(context.Background(), declared)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	return plan
}

func callStrings(calls []clustertest.Call) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.String())
	}
	return out
}

// seeded returns a cluster holding alterMe and dropMe in their original
// shape, and the declarations that create createMe, alter alterMe and drop
// dropMe.
func seeded() (*clustertest.Cluster, []schema.Table) {
	c := clustertest.New()
	c.AddEffective(schematest.Effective(schematest.Table("alterMe")))
	c.AddEffective(schematest.Effective(schematest.Table("dropMe")))
	return c, []schema.Table{
		schematest.AlteredTable("alterMe"),
		schematest.Table("createMe"),
		schematest.WithIntent(schematest.Table("dropMe"), schema.IntentDrop),
	}
}

func TestRunCreate(t *testing.T) {
	c := clustertest.New()
	plan := mustPlan(t, c, schematest.Table("createMe"))
	c.Reset()

	out := New(c, Options{}).Run(context.Background(), plan)
	if out.Err != nil {
		t.Fatalf("Run failed: %v", out.Err)
	}
	if got := out.ExitCode(); got != ExitOK {
		t.Errorf("ExitCode = %d, want %d", got, ExitOK)
	}

	want := []string{"create(createMe)"}
	if got := callStrings(c.Mutations()); !reflect.DeepEqual(got, want) {
		t.Errorf("mutations = %v, want %v", got, want)
	}
	if r := plan.Action("createMe").Result; r == nil || r.Status != planner.StatusApplied {
		t.Errorf("expected createMe to be applied, got %+v", r)
	}
	if len(out.PostValidation.Findings) != 0 {
		t.Errorf("expected clean post-validation, got %v", out.PostValidation.Findings)
	}
}

func TestRunAlterDisablesModifiesEnables(t *testing.T) {
	c := clustertest.New()
	c.AddEffective(schematest.Effective(schematest.Table("alterMe")))
	plan := mustPlan(t, c, schematest.AlteredTable("alterMe"))
	c.Reset()

	out := New(c, Options{}).Run(context.Background(), plan)
	if out.Err != nil {
		t.Fatalf("Run failed: %v", out.Err)
	}

	want := []string{"disable(alterMe)", "modify(alterMe)", "enable(alterMe)"}
	if got := callStrings(c.Mutations()); !reflect.DeepEqual(got, want) {
		t.Errorf("mutations = %v, want %v", got, want)
	}

	state, _ := c.Describe(context.Background(), "alterMe")
	if !state.Enabled {
		t.Error("expected alterMe to be enabled after the alter")
	}
	if v, _ := state.TableAttribute(schema.AttrOwner); v != "ivarley2" {
		t.Errorf("OWNER = %q, want ivarley2", v)
	}
	if v, _ := state.FamilyAttribute("alterMeColumnFamily1", schema.AttrBlockSize); v != "66560" {
		t.Errorf("BLOCKSIZE = %q, want 66560", v)
	}
}

func TestRunAlterOfDisabledTableStaysDisabled(t *testing.T) {
	c := clustertest.New()
	c.AddTable(cluster.NewDescriptor(schematest.Effective(schematest.Table("alterMe"))), false)
	plan := mustPlan(t, c, schematest.AlteredTable("alterMe"))
	c.Reset()

	if out := New(c, Options{}).Run(context.Background(), plan); out.Err != nil {
		t.Fatalf("Run failed: %v", out.Err)
	}

	want := []string{"modify(alterMe)"}
	if got := callStrings(c.Mutations()); !reflect.DeepEqual(got, want) {
		t.Errorf("mutations = %v, want %v", got, want)
	}
}

func TestRunAlterKeepsUnmodeledSettings(t *testing.T) {
	c := clustertest.New()
	desc := cluster.NewDescriptor(schematest.Effective(schematest.Table("alterMe")))
	desc.Attributes["COPROCESSOR$1"] = "|org.example.Observer|1001|"
	desc.Families = append(desc.Families, cluster.FamilyDescriptor{
		Name:       "legacy",
		Attributes: map[string]string{schema.AttrVersions: "1"},
	})
	c.AddTable(desc, true)

	plan := mustPlan(t, c, schematest.AlteredTable("alterMe"))
	if out := New(c, Options{}).Run(context.Background(), plan); out.Err != nil {
		t.Fatalf("Run failed: %v", out.Err)
	}

	state, _ := c.Describe(context.Background(), "alterMe")
	if v, ok := state.TableAttribute("COPROCESSOR$1"); !ok || v != "|org.example.Observer|1001|" {
		t.Errorf("expected coprocessor attribute to survive, got %q", v)
	}
	if _, ok := state.FamilyAttribute("legacy", schema.AttrVersions); !ok {
		t.Error("expected undeclared family to survive")
	}
}

func TestRunDropDisablesThenDeletes(t *testing.T) {
	c := clustertest.New()
	c.AddEffective(schematest.Effective(schematest.Table("dropMe")))
	plan := mustPlan(t, c, schematest.WithIntent(schematest.Table("dropMe"), schema.IntentDrop))
	c.Reset()

	out := New(c, Options{}).Run(context.Background(), plan)
	if out.Err != nil {
		t.Fatalf("Run failed: %v", out.Err)
	}

	want := []string{"disable(dropMe)", "delete(dropMe)"}
	if got := callStrings(c.Mutations()); !reflect.DeepEqual(got, want) {
		t.Errorf("mutations = %v, want %v", got, want)
	}
	if exists, _ := c.Exists(context.Background(), "dropMe"); exists {
		t.Error("expected dropMe to be gone")
	}
}

func TestRunDropOfMissingTableIsNoop(t *testing.T) {
	c := clustertest.New()
	plan := mustPlan(t, c, schematest.WithIntent(schematest.Table("ghost"), schema.IntentDrop))

	out := New(c, Options{}).Run(context.Background(), plan)
	if out.Err != nil {
		t.Fatalf("Run failed: %v", out.Err)
	}
	if len(out.PreValidation.Warnings()) != 1 {
		t.Errorf("expected one pre-validation warning, got %v", out.PreValidation.Findings)
	}
	if len(c.Mutations()) != 0 {
		t.Errorf("expected no mutations, got %v", c.Mutations())
	}
	if r := plan.Action("ghost").Result; r == nil || r.Status != planner.StatusNoop {
		t.Errorf("expected noop record, got %+v", r)
	}
}

func TestRunOrdersDropsCreatesAlters(t *testing.T) {
	c, declared := seeded()
	plan := mustPlan(t, c, declared...)
	c.Reset()

	out := New(c, Options{}).Run(context.Background(), plan)
	if out.Err != nil {
		t.Fatalf("Run failed: %v", out.Err)
	}

	want := []string{
		"disable(dropMe)", "delete(dropMe)",
		"create(createMe)",
		"disable(alterMe)", "modify(alterMe)", "enable(alterMe)",
	}
	if got := callStrings(c.Mutations()); !reflect.DeepEqual(got, want) {
		t.Errorf("mutations = %v, want %v", got, want)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	c, declared := seeded()
	plan := mustPlan(t, c, declared...)
	if out := New(c, Options{}).Run(context.Background(), plan); out.Err != nil {
		t.Fatalf("first Run failed: %v", out.Err)
	}

	again := mustPlan(t, c, declared...)
	for _, a := range again.Actions {
		switch a.Table {
		case "dropMe":
			// Still declared as a drop; the second run is a no-op.
			if a.Kind != planner.ActionDrop {
				t.Errorf("dropMe: expected DROP, got %s", a.Kind)
			}
		default:
			if a.Kind != planner.ActionUnchanged {
				t.Errorf("%s: expected UNCHANGED, got %s with %+v", a.Table, a.Kind, a.Changes)
			}
		}
	}

	c.Reset()
	out := New(c, Options{}).Run(context.Background(), again)
	if out.Err != nil {
		t.Fatalf("second Run failed: %v", out.Err)
	}
	if len(c.Mutations()) != 0 {
		t.Errorf("expected no mutations on the second run, got %v", c.Mutations())
	}
}

func TestRunStopsOnPreValidationError(t *testing.T) {
	c, declared := seeded()
	plan := mustPlan(t, c, declared...)
	c.SetAttribute("alterMe", "", schema.AttrOwner, "someoneElse")
	c.Reset()

	out := New(c, Options{}).Run(context.Background(), plan)
	if !errors.Is(out.Err, ErrPreValidation) {
		t.Fatalf("expected ErrPreValidation, got %v", out.Err)
	}
	if got := out.ExitCode(); got != ExitPreValidation {
		t.Errorf("ExitCode = %d, want %d", got, ExitPreValidation)
	}
	if out.Executed {
		t.Error("expected nothing to be executed")
	}
	if len(c.Mutations()) != 0 {
		t.Errorf("expected no mutations, got %v", c.Mutations())
	}
	for _, a := range plan.Actions {
		if a.Kind.Mutates() && (a.Result == nil || a.Result.Status != planner.StatusSkipped) {
			t.Errorf("%s: expected skipped, got %+v", a.Table, a.Result)
		}
	}
}

func TestRunProceedsOnDropWarnings(t *testing.T) {
	c, declared := seeded()
	plan := mustPlan(t, c, declared...)
	c.SetAttribute("dropMe", "dropMeColumnFamily1", schema.AttrTTL, "60")

	out := New(c, Options{}).Run(context.Background(), plan)
	if out.Err != nil {
		t.Fatalf("Run failed: %v", out.Err)
	}
	if len(out.PreValidation.Warnings()) != 1 {
		t.Errorf("expected one warning, got %v", out.PreValidation.Findings)
	}
	if exists, _ := c.Exists(context.Background(), "dropMe"); exists {
		t.Error("expected dropMe to be dropped despite the warning")
	}
}

func TestRunHaltsOnExecutionError(t *testing.T) {
	c, declared := seeded()
	plan := mustPlan(t, c, declared...)
	boom := errors.New("region server unavailable")
	c.FailOn(clustertest.OpCreate, "createMe", boom)

	out := New(c, Options{}).Run(context.Background(), plan)
	var execErr *ExecutionError
	if !errors.As(out.Err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", out.Err)
	}
	if execErr.Table != "createMe" || execErr.Step != "create" || !errors.Is(execErr, boom) {
		t.Errorf("unexpected error %+v", execErr)
	}
	if got := out.ExitCode(); got != ExitExecution {
		t.Errorf("ExitCode = %d, want %d", got, ExitExecution)
	}
	if out.PostValidation != nil {
		t.Error("expected post-validation to be skipped")
	}

	want := map[string]planner.ExecutionStatus{
		"dropMe":   planner.StatusApplied,
		"createMe": planner.StatusFailed,
		"alterMe":  planner.StatusSkipped,
	}
	for table, status := range want {
		r := plan.Action(table).Result
		if r == nil || r.Status != status {
			t.Errorf("%s: expected %s, got %+v", table, status, r)
		}
	}
	if exists, _ := c.Exists(context.Background(), "dropMe"); exists {
		t.Error("expected completed drop to stay applied")
	}
}

func TestAlterReenablesTableWhenModifyFails(t *testing.T) {
	c := clustertest.New()
	c.AddEffective(schematest.Effective(schematest.Table("alterMe")))
	plan := mustPlan(t, c, schematest.AlteredTable("alterMe"))
	c.FailOn(clustertest.OpModify, "alterMe", errors.New("descriptor rejected"))

	err := New(c, Options{}).Apply(context.Background(), plan)
	var execErr *ExecutionError
	if !errors.As(err, &execErr) || execErr.Step != "modify" {
		t.Fatalf("expected modify ExecutionError, got %v", err)
	}
	if enabled, _ := c.IsEnabled(context.Background(), "alterMe"); !enabled {
		t.Error("expected alterMe to be re-enabled")
	}
	state, _ := c.Describe(context.Background(), "alterMe")
	if v, _ := state.TableAttribute(schema.AttrOwner); v != "ivarley" {
		t.Errorf("OWNER = %q, want the original ivarley", v)
	}
}

func TestRunDryRun(t *testing.T) {
	c, declared := seeded()
	plan := mustPlan(t, c, declared...)
	c.Reset()

	out := New(c, Options{DryRun: true}).Run(context.Background(), plan)
	if out.Err != nil {
		t.Fatalf("Run failed: %v", out.Err)
	}
	if out.Executed || !out.DryRun {
		t.Errorf("expected a dry run, got %+v", out)
	}
	if out.PreValidation == nil || out.PostValidation != nil {
		t.Errorf("expected only pre-validation, got %+v", out)
	}
	if len(c.Mutations()) != 0 {
		t.Errorf("expected no mutations, got %v", c.Mutations())
	}
}

// lossy accepts modifications without applying them.
type lossy struct {
	*clustertest.Cluster
}

func (lossy) ModifyTable(context.Context, string, *cluster.Descriptor) error { return nil }

func TestRunReportsPostValidationFailure(t *testing.T) {
	c := clustertest.New()
	c.AddEffective(schematest.Effective(schematest.Table("alterMe")))
	admin := lossy{c}
	plan := mustPlan(t, admin, schematest.AlteredTable("alterMe"))

	out := New(admin, Options{}).Run(context.Background(), plan)
	if !errors.Is(out.Err, ErrPostValidation) {
		t.Fatalf("expected ErrPostValidation, got %v", out.Err)
	}
	if got := out.ExitCode(); got != ExitPostValidation {
		t.Errorf("ExitCode = %d, want %d", got, ExitPostValidation)
	}
	if len(out.PostValidation.Errors()) != 4 {
		t.Errorf("expected 4 post-validation errors, got %v", out.PostValidation.Findings)
	}
}

func TestRunPreSplitCreate(t *testing.T) {
	c := clustertest.New()
	tbl := schematest.Table("createMe")
	tbl.PreSplitRegions = schema.Int(8)
	plan := mustPlan(t, c, tbl)

	if out := New(c, Options{}).Run(context.Background(), plan); out.Err != nil {
		t.Fatalf("Run failed: %v", out.Err)
	}
	if got := c.Regions("createMe"); got != 8 {
		t.Errorf("Regions = %d, want 8", got)
	}
}

func TestApplyParallel(t *testing.T) {
	c := clustertest.New()
	var declared []schema.Table
	for _, name := range []string{"t1", "t2", "t3", "t4", "t5"} {
		declared = append(declared, schematest.Table(name))
	}
	plan := mustPlan(t, c, declared...)

	out := New(c, Options{Parallelism: 3}).Run(context.Background(), plan)
	if out.Err != nil {
		t.Fatalf("Run failed: %v", out.Err)
	}
	for _, a := range plan.Actions {
		if a.Result == nil || a.Result.Status != planner.StatusApplied {
			t.Errorf("%s: expected applied, got %+v", a.Table, a.Result)
		}
	}
	if len(c.Mutations()) != 5 {
		t.Errorf("expected 5 creates, got %v", c.Mutations())
	}
}

func TestApplyParallelFailureStopsLaterKinds(t *testing.T) {
	c := clustertest.New()
	c.AddEffective(schematest.Effective(schematest.Table("alterMe")))
	declared := []schema.Table{schematest.AlteredTable("alterMe")}
	for _, name := range []string{"t1", "t2", "t3"} {
		declared = append(declared, schematest.Table(name))
	}
	plan := mustPlan(t, c, declared...)
	c.FailOn(clustertest.OpCreate, "t2", errors.New("quota exceeded"))

	err := New(c, Options{Parallelism: 2}).Apply(context.Background(), plan)
	var execErr *ExecutionError
	if !errors.As(err, &execErr) || execErr.Table != "t2" {
		t.Fatalf("expected ExecutionError for t2, got %v", err)
	}
	if r := plan.Action("alterMe").Result; r == nil || r.Status != planner.StatusSkipped {
		t.Errorf("expected alterMe skipped, got %+v", r)
	}
	for _, call := range c.Mutations() {
		if call.Table == "alterMe" {
			t.Errorf("alter must not start after a failed create, saw %v", call)
		}
	}
}

// contextAware fails modify and enable once its context is cancelled. slow's
// modify waits until bad's modify has failed, then gives the errgroup time
// to cancel its context.
type contextAware struct {
	*clustertest.Cluster
	slowModifying chan struct{}
	badFailed     chan struct{}
}

func (c *contextAware) ModifyTable(ctx context.Context, name string, desc *cluster.Descriptor) error {
	switch name {
	case "bad":
		<-c.slowModifying
		err := c.Cluster.ModifyTable(ctx, name, desc)
		close(c.badFailed)
		return err
	case "slow":
		close(c.slowModifying)
		<-c.badFailed
		time.Sleep(50 * time.Millisecond)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Cluster.ModifyTable(ctx, name, desc)
}

func (c *contextAware) EnableTable(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Cluster.EnableTable(ctx, name)
}

func TestApplyParallelFailureLetsStartedAltersFinish(t *testing.T) {
	c := clustertest.New()
	c.AddEffective(schematest.Effective(schematest.Table("bad")))
	c.AddEffective(schematest.Effective(schematest.Table("slow")))
	admin := &contextAware{Cluster: c, slowModifying: make(chan struct{}), badFailed: make(chan struct{})}
	plan := mustPlan(t, admin, schematest.AlteredTable("bad"), schematest.AlteredTable("slow"))
	c.FailOn(clustertest.OpModify, "bad", errors.New("region server unavailable"))

	err := New(admin, Options{Parallelism: 2}).Apply(context.Background(), plan)
	var execErr *ExecutionError
	if !errors.As(err, &execErr) || execErr.Table != "bad" {
		t.Fatalf("expected ExecutionError for bad, got %v", err)
	}

	r := plan.Action("slow").Result
	if r == nil || r.Status != planner.StatusApplied {
		t.Fatalf("expected slow to finish its alter, got %+v", r)
	}
	if want := []string{"describe", "disable", "modify", "enable"}; !reflect.DeepEqual(r.Steps, want) {
		t.Errorf("slow steps = %v, want %v", r.Steps, want)
	}
	enabled, err := c.IsEnabled(context.Background(), "slow")
	if err != nil || !enabled {
		t.Errorf("expected slow to be back online, enabled=%v err=%v", enabled, err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, ExitOK},
		{"pre", ErrPreValidation, ExitPreValidation},
		{"execution", &ExecutionError{Table: "t", Action: planner.ActionCreate, Step: "create", Err: errors.New("x")}, ExitExecution},
		{"post", ErrPostValidation, ExitPostValidation},
		{"other", errors.New("connection refused"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (&Outcome{Err: tt.err}).ExitCode(); got != tt.want {
				t.Errorf("ExitCode = %d, want %d", got, tt.want)
			}
		})
	}
}
