package collector_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/assay/collector"
	"github.com/justapithecus/assay/filter"
	"github.com/justapithecus/assay/log"
	"github.com/justapithecus/assay/metrics"
	"github.com/justapithecus/assay/report"
	"github.com/justapithecus/assay/source"
	"github.com/justapithecus/assay/types"
)

var (
	testEndpoint = types.EngineEndpoint{Name: "fraud", Host: "be1", Port: 5555}
	tick         = time.Date(2026, 3, 7, 10, 30, 0, 0, time.UTC)
)

type fixture struct {
	dir       string
	src       *source.StubSource
	collector *collector.Collector
	stats     *metrics.Collector
}

func newFixture(t *testing.T, categories []types.Category, includes map[types.Category][]string) *fixture {
	t.Helper()
	dir := t.TempDir()
	src := source.NewStubSource()
	f, err := filter.New(false, includes)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	stats := metrics.NewCollector()
	c := collector.New(collector.Config{
		Endpoint: testEndpoint,
		Source:   src,
		Writer: report.NewWriter(testEndpoint, dir,
			report.WithClock(func() time.Time { return tick })),
		Filter:     f,
		Categories: categories,
		Logger:     log.NewLogger().WithOutput(io.Discard),
		Stats:      stats,
	})
	t.Cleanup(c.Release)
	return &fixture{dir: dir, src: src, collector: c, stats: stats}
}

func (fx *fixture) reportLines(t *testing.T, category types.Category) []string {
	t.Helper()
	name := report.NewWriter(testEndpoint, "").Filename(category, tick)
	data, err := os.ReadFile(filepath.Join(fx.dir, name))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func (fx *fixture) reportExists(category types.Category) bool {
	name := report.NewWriter(testEndpoint, "").Filename(category, tick)
	_, err := os.Stat(filepath.Join(fx.dir, name))
	return err == nil
}

func cacheObject(name string, attrs map[string]any) (source.ObjectID, map[string]any) {
	id := source.MustParseObjectID("com.tibco.be:service=Cache,name=" + name)
	base := map[string]any{"ClassName": name, "CacheSize": 5, "GetAvgTime": 0.25, "GetCount": 10,
		"NumHandlesInStore": 5, "PutAvgTime": 0.5, "PutCount": 10, "RemoveAvgTime": 0.0,
		"RemoveCount": 0, "TypeId": 7}
	for k, v := range attrs {
		base[k] = v
	}
	return id, base
}

func TestCollect_InclusionFiltering(t *testing.T) {
	fx := newFixture(t, []types.Category{types.CategoryEntityCache},
		map[types.Category][]string{types.CategoryEntityCache: {"Order.*"}})

	query := types.CategoryEntityCache.Spec().Query
	for _, name := range []string{"be.gen.OrderLine", "be.gen.Customer"} {
		id, attrs := cacheObject(name, nil)
		fx.src.AddObject(query, id, attrs)
	}

	res := fx.collector.Collect(context.Background(), tick)
	if !res.OK() {
		t.Fatalf("cycle failed: %+v", res)
	}
	if res.TotalRows() != 1 {
		t.Fatalf("expected 1 row, got %d", res.TotalRows())
	}

	lines := fx.reportLines(t, types.CategoryEntityCache)
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %v", lines)
	}
	if !strings.HasPrefix(lines[1], "OrderLine,") {
		t.Errorf("expected OrderLine row with prefix stripped, got %s", lines[1])
	}
	for _, line := range lines[1:] {
		if strings.Contains(line, "Customer") {
			t.Errorf("Customer must be filtered out: %s", line)
		}
	}
}

func TestCollect_RowCarriesSharedTimestamp(t *testing.T) {
	fx := newFixture(t, []types.Category{types.CategoryEntityCache}, nil)
	id, attrs := cacheObject("be.gen.Order", nil)
	fx.src.AddObject(types.CategoryEntityCache.Spec().Query, id, attrs)

	res := fx.collector.Collect(context.Background(), tick)
	if !res.OK() {
		t.Fatalf("cycle failed: %+v", res)
	}

	lines := fx.reportLines(t, types.CategoryEntityCache)
	want := tick.Format(types.TimestampLayout)
	if cols := strings.Split(lines[1], ","); cols[1] != want {
		t.Errorf("DateTime column = %s, want %s", cols[1], want)
	}
}

func TestCollect_UnreachableEngine(t *testing.T) {
	fx := newFixture(t, types.AllCategories(), nil)
	fx.src.FailOpen = true

	res := fx.collector.Collect(context.Background(), tick)
	if res.ConnectErr == nil {
		t.Fatal("expected connect error")
	}
	var cerr *collector.CollectError
	if !errors.As(res.ConnectErr, &cerr) || cerr.Kind != collector.KindConnect {
		t.Fatalf("expected KindConnect, got %v", res.ConnectErr)
	}
	if len(res.Categories) != 0 {
		t.Errorf("no categories may be attempted, got %d", len(res.Categories))
	}
	for _, category := range types.AllCategories() {
		if fx.reportExists(category) {
			t.Errorf("%s: no file may be created for a dead engine", category)
		}
	}
	// No half-open connection state survives into the next cycle.
	if fx.src.IsOpen() {
		t.Error("source left open after failed cycle")
	}

	// Engine comes back: the next cycle reconnects lazily and succeeds.
	fx.src.FailOpen = false
	id, attrs := cacheObject("be.gen.Order", nil)
	fx.src.AddObject(types.CategoryEntityCache.Spec().Query, id, attrs)
	res = fx.collector.Collect(context.Background(), tick)
	if res.ConnectErr != nil {
		t.Fatalf("reconnect failed: %v", res.ConnectErr)
	}
}

func TestCollect_DeltaResetPerSuccessfulRead(t *testing.T) {
	fx := newFixture(t, []types.Category{types.CategoryTxnManager}, nil)
	id := source.MustParseObjectID(types.CategoryTxnManager.Spec().Query)
	fx.src.AddObject(types.CategoryTxnManager.Spec().Query, id, map[string]any{
		"AvgActionTxnMillis": 1.5, "TotalSuccessfulTxns": 100,
	})

	for n := 0; n < 2; n++ {
		res := fx.collector.Collect(context.Background(), tick)
		if !res.OK() {
			t.Fatalf("cycle failed: %+v", res)
		}
	}
	if got := len(fx.src.Invocations); got != 2 {
		t.Fatalf("expected exactly 2 reset invocations, got %d", got)
	}
	for _, inv := range fx.src.Invocations {
		if inv[1] != types.ResetOperation {
			t.Errorf("unexpected operation %s", inv[1])
		}
	}

	// A failed read issues no reset.
	fx.src.FailAttrs[id.String()] = errors.New("fetch blew up")
	res := fx.collector.Collect(context.Background(), tick)
	if !res.OK() {
		t.Fatalf("fetch errors must not fail the category: %+v", res)
	}
	if got := len(fx.src.Invocations); got != 2 {
		t.Errorf("reset must not follow a failed read, got %d invocations", got)
	}
}

func TestCollect_ResetFailureDoesNotFailCategory(t *testing.T) {
	fx := newFixture(t, []types.Category{types.CategoryTxnManager}, nil)
	id := source.MustParseObjectID(types.CategoryTxnManager.Spec().Query)
	fx.src.AddObject(types.CategoryTxnManager.Spec().Query, id, map[string]any{"TotalErrors": 0})
	fx.src.FailInvoke = errors.New("reset unavailable")

	res := fx.collector.Collect(context.Background(), tick)
	if !res.OK() {
		t.Fatalf("reset failure must not fail the cycle: %+v", res)
	}
	if res.TotalRows() != 1 {
		t.Errorf("sample must still be written, got %d rows", res.TotalRows())
	}
	if fx.stats.Snapshot().ResetFailures != 1 {
		t.Errorf("reset failure not counted")
	}
}

func TestCollect_EmptyIdentifierSet(t *testing.T) {
	fx := newFixture(t, []types.Category{types.CategoryAgentEntity}, nil)
	fx.src.Objects[types.CategoryAgentEntity.Spec().Query] = nil

	res := fx.collector.Collect(context.Background(), tick)
	if !res.OK() {
		t.Fatalf("empty set is not an error: %+v", res)
	}
	if !res.Categories[0].Empty {
		t.Error("result must flag the empty set")
	}

	lines := fx.reportLines(t, types.CategoryAgentEntity)
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 diagnostic line, got %v", lines)
	}
	if lines[1] != "Entity list for BEAgentEntity is empty" {
		t.Errorf("diagnostic line = %q", lines[1])
	}
}

func TestCollect_EntityFetchFailureIsIsolated(t *testing.T) {
	fx := newFixture(t, []types.Category{types.CategoryEntityCache}, nil)
	query := types.CategoryEntityCache.Spec().Query

	good, goodAttrs := cacheObject("be.gen.Order", nil)
	bad, _ := cacheObject("be.gen.Broken", nil)
	fx.src.AddObject(query, good, goodAttrs)
	fx.src.Objects[query] = append(fx.src.Objects[query], bad)
	fx.src.FailAttrs[bad.String()] = errors.New("attribute read timed out")

	res := fx.collector.Collect(context.Background(), tick)
	if !res.OK() {
		t.Fatalf("entity failure must not fail the category: %+v", res)
	}
	cr := res.Categories[0]
	if cr.Rows != 1 {
		t.Errorf("good entity must be written, got %d rows", cr.Rows)
	}
	if len(cr.EntityErrors) != 1 || cr.EntityErrors[0].Object != bad.String() {
		t.Errorf("entity error not recorded: %+v", cr.EntityErrors)
	}

	lines := fx.reportLines(t, types.CategoryEntityCache)
	var diag bool
	for _, line := range lines {
		if strings.HasPrefix(line, "Failed to get attributes for entity ") {
			diag = true
		}
	}
	if !diag {
		t.Errorf("diagnostic line missing: %v", lines)
	}
}

func TestCollect_QueryFailureRetriedOnce(t *testing.T) {
	fx := newFixture(t, []types.Category{types.CategoryEntityCache}, nil)
	id, attrs := cacheObject("be.gen.Order", nil)
	fx.src.AddObject(types.CategoryEntityCache.Spec().Query, id, attrs)
	fx.src.FailList = errors.New("connection reset by peer")

	res := fx.collector.Collect(context.Background(), tick)
	if !res.OK() {
		t.Fatalf("retry should have recovered: %+v", res)
	}
	cr := res.Categories[0]
	if !cr.Retried {
		t.Error("result must flag the retry")
	}
	if cr.Rows != 1 {
		t.Errorf("expected 1 row after retry, got %d", cr.Rows)
	}
	if fx.stats.Snapshot().CategoryRetries != 1 {
		t.Error("retry not counted")
	}
}

func TestCollect_CategoryFailureIsolatedFromOthers(t *testing.T) {
	fx := newFixture(t, []types.Category{types.CategoryEntityCache, types.CategoryAgentEntity}, nil)

	// Cache category has no registered query: StubSource returns an empty
	// set for unknown queries, so make it fail listing twice instead.
	agentID := source.MustParseObjectID("com.tibco.be:type=Agent,agentId=1,subType=Entity,entityId=be.gen.Order")
	fx.src.AddObject(types.CategoryAgentEntity.Spec().Query, agentID, map[string]any{"CacheMode": "memory"})

	fx.src.FailList = errors.New("query timed out")

	res := fx.collector.Collect(context.Background(), tick)

	// The first category consumed the single FailList and recovered on
	// retry (empty set); the second category must be unaffected.
	last := res.Categories[len(res.Categories)-1]
	if last.Category != types.CategoryAgentEntity {
		t.Fatalf("unexpected category order: %+v", res.Categories)
	}
	if last.Err != nil {
		t.Errorf("later category affected by earlier failure: %v", last.Err)
	}
	if last.Rows != 1 {
		t.Errorf("expected 1 agent row, got %d", last.Rows)
	}
}

func TestCollect_MissingAttributeToken(t *testing.T) {
	fx := newFixture(t, []types.Category{types.CategoryEntityCache}, nil)
	id := source.MustParseObjectID("com.tibco.be:service=Cache,name=be.gen.Order")
	// Only the ClassName attribute is present; everything else is absent.
	fx.src.AddObject(types.CategoryEntityCache.Spec().Query, id, map[string]any{
		"ClassName": "be.gen.Order",
	})

	for n := 0; n < 2; n++ {
		if res := fx.collector.Collect(context.Background(), tick); !res.OK() {
			t.Fatalf("cycle failed: %+v", res)
		}
	}

	lines := fx.reportLines(t, types.CategoryEntityCache)
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %v", lines)
	}
	wantCols := len(strings.Split(types.CategoryEntityCache.Header(), ","))
	for _, line := range lines[1:] {
		cols := strings.Split(line, ",")
		if len(cols) != wantCols {
			t.Errorf("row has %d columns, want %d: %s", len(cols), wantCols, line)
		}
		if cols[2] != "<nil>" {
			t.Errorf("absent value token = %q", cols[2])
		}
	}
	// The absent token round-trips identically across cycles.
	if lines[1] != lines[2] {
		t.Errorf("absent values must be stable across cycles: %q vs %q", lines[1], lines[2])
	}
}

func TestCollect_RowOrderFollowsIdentifierOrder(t *testing.T) {
	fx := newFixture(t, []types.Category{types.CategoryEntityCache}, nil)
	query := types.CategoryEntityCache.Spec().Query
	for _, name := range []string{"be.gen.Zulu", "be.gen.Alpha", "be.gen.Mike"} {
		id, attrs := cacheObject(name, nil)
		fx.src.AddObject(query, id, attrs)
	}

	if res := fx.collector.Collect(context.Background(), tick); !res.OK() {
		t.Fatalf("cycle failed")
	}

	lines := fx.reportLines(t, types.CategoryEntityCache)
	var names []string
	for _, line := range lines[1:] {
		names = append(names, strings.SplitN(line, ",", 2)[0])
	}
	want := []string{"Alpha", "Mike", "Zulu"} // canonical identifier order
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("row order %v, want %v", names, want)
		}
	}
}
