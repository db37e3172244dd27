package dbcontext

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/appctx"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/dberr"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/dbtest"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/interceptor"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata/entity"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/record"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/txn"
	"github.com/ovaphlow/pitchfork/service-persistence-go/pkg/utilities"
)

type customer struct {
	record.BaseModel
	Name string
}

func (customer) TableName() string { return "Customer" }

type product struct {
	record.BaseModel
	Name  string
	Price float64
}

func (product) TableName() string { return "Product" }

type unknown struct {
	record.BaseModel
}

// hookLog records interceptor calls across the fresh instances a factory builds.
type hookLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *hookLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *hookLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type auditHook struct {
	interceptor.Nop
	log *hookLog
	gw  interceptor.Gateway
}

func (h *auditHook) BeforeDynamicInsert(_ context.Context, rec *record.Record) error {
	if rec.GetString("Name") == "bad" {
		return errors.New("rejected")
	}
	h.log.add("before-insert")
	return nil
}

func (h *auditHook) AfterDynamicInsert(ctx context.Context, rec *record.Record) error {
	n, err := h.gw.ExecuteScalar(ctx, "SELECT COUNT(1) FROM Customer WHERE Fid = :Fid", map[string]any{"Fid": rec.Get("Fid")})
	if err != nil {
		return err
	}
	h.log.add(fmt.Sprintf("after-insert:%d", record.ToInt64(n)))
	if rec.GetString("Name") == "after-fail" {
		return errors.New("after hook failed")
	}
	return nil
}

func (h *auditHook) BeforeEntityUpdate(_ context.Context, e record.Entity) error {
	h.log.add("before-update:" + e.(*customer).Name)
	return nil
}

func (h *auditHook) AfterDynamicDelete(_ context.Context, rec *record.Record) error {
	h.log.add("after-delete")
	return nil
}

type DbContextSuite struct {
	suite.Suite
	ctx   context.Context
	db    *DbContext
	hooks *hookLog
	clock time.Time
}

func TestDbContextSuite(t *testing.T) {
	suite.Run(t, new(DbContextSuite))
}

func testCatalog() *metadata.Catalog {
	c := metadata.NewCatalog()
	c.AddTable(entity.FapTable{TableName: "PurchaseOrder", TableFeature: entity.BillFeature, TraceAble: 1})
	c.AddTable(entity.FapTable{TableName: "Customer", DataInterceptor: "audit"})
	c.AddTable(entity.FapTable{TableName: "Product", TraceAble: 1})
	for _, t := range []string{"PurchaseOrder", "Customer", "Product"} {
		c.AddColumns(metadata.SystemColumns(t)...)
	}
	c.AddColumns(
		entity.FapColumn{TableName: "PurchaseOrder", ColName: "BillCode"},
		entity.FapColumn{TableName: "PurchaseOrder", ColName: "BillStatus"},
		entity.FapColumn{TableName: "PurchaseOrder", ColName: "Title"},
		entity.FapColumn{TableName: "PurchaseOrder", ColName: "Amount", ColType: "double"},
		entity.FapColumn{TableName: "Customer", ColName: "Name"},
		entity.FapColumn{TableName: "Product", ColName: "Name"},
		entity.FapColumn{TableName: "Product", ColName: "Price", ColType: "double"},
	)
	return c
}

func (s *DbContextSuite) SetupTest() {
	s.clock = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	s.hooks = &hookLog{}
	s.ctx = appctx.With(context.Background(), &appctx.Context{EmpUid: "emp-1", EmpName: "Ann", OrgUid: "org-1"})

	reg := interceptor.NewRegistry(nil)
	reg.Register("audit", func(env interceptor.Env) (interceptor.Interceptor, error) {
		return &auditHook{log: s.hooks, gw: env.Gateway}, nil
	})

	sqlDB := dbtest.Open(s.T())
	s.db = New(txn.FromDB(sqlDB), testCatalog(),
		WithClock(func() time.Time { return s.clock }),
		WithInterceptors(reg),
	)
	s.Require().NoError(s.db.EnsureSchema(context.Background()))
}

func (s *DbContextSuite) tick() { s.clock = s.clock.Add(time.Minute) }

func (s *DbContextSuite) TestDynamicRoundTripWithBillCode() {
	rec := record.New("PurchaseOrder").Set("Title", "Chairs").Set("Amount", 12.5)
	id, err := s.db.InsertDynamic(s.ctx, rec)
	s.Require().NoError(err)
	s.Positive(id)
	s.Equal(id, rec.GetInt64("Id"))

	got, err := s.db.GetByFid(s.ctx, "PurchaseOrder", rec.GetString("Fid"))
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("Chairs", got.GetString("Title"))
	s.InDelta(12.5, record.ToFloat64(got.Get("Amount")), 0.0001)
	s.Equal("0000001", got.GetString("BillCode"))
	s.Regexp(regexp.MustCompile(`^\d{7}$`), got.GetString("BillCode"))
	s.Equal(metadata.BillDraft, got.GetString("BillStatus"))
	s.Equal(0, got.GetInt("Dr"))
	s.Equal("emp-1", got.GetString("CreateBy"))
	s.Equal("org-1", got.GetString("OrgUid"))
	s.Less(got.GetString("EnableDate"), got.GetString("DisableDate"))

	next := record.New("PurchaseOrder").Set("Title", "Desks")
	_, err = s.db.InsertDynamic(s.ctx, next)
	s.Require().NoError(err)
	s.Equal("0000002", next.GetString("BillCode"))
}

func (s *DbContextSuite) TestTypedRoundTrip() {
	p := &product{Name: "Lamp", Price: 20}
	s.Require().NoError(Insert(s.ctx, s.db, p))
	s.Positive(p.Id)
	s.NotEmpty(p.Fid)

	got, err := GetByFid[*product](s.ctx, s.db, p.Fid)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("Lamp", got.Name)
	s.InDelta(20.0, got.Price, 0.0001)
	s.Equal(p.Id, got.Id)
	s.Equal(utilities.PermanentDateTime, got.DisableDate)

	byID, err := Get[*product](s.ctx, s.db, p.Id)
	s.Require().NoError(err)
	s.Equal(p.Fid, byID.Fid)

	missing, err := GetByFid[*product](s.ctx, s.db, "nope")
	s.Require().NoError(err)
	s.Nil(missing)
}

func (s *DbContextSuite) TestTracedUpdateKeepsOneCurrentVersion() {
	p := &product{Name: "Lamp", Price: 20}
	s.Require().NoError(Insert(s.ctx, s.db, p))
	firstID := p.Id

	for i, price := range []float64{25, 30} {
		s.tick()
		p.Price = price
		s.Require().NoError(Update(s.ctx, s.db, p), "update %d", i)
	}
	s.NotEqual(firstID, p.Id)

	versions, err := s.db.History(s.ctx, "Product", p.Fid)
	s.Require().NoError(err)
	s.Require().Len(versions, 3)

	current := 0
	last := versions[len(versions)-1]
	for _, v := range versions {
		if v.GetInt("Dr") == 0 && v.GetString("DisableDate") == utilities.PermanentDateTime {
			current++
			continue
		}
		s.LessOrEqual(v.GetString("DisableDate"), last.GetString("EnableDate"))
	}
	s.Equal(1, current)
	s.Equal(p.Id, last.GetInt64("Id"))

	got, err := GetByFid[*product](s.ctx, s.db, p.Fid)
	s.Require().NoError(err)
	s.InDelta(30.0, got.Price, 0.0001)
	s.Equal("emp-1", got.UpdateBy)
}

func (s *DbContextSuite) TestUntracedUpdateKeepsRowCount() {
	c := &customer{Name: "Acme"}
	s.Require().NoError(Insert(s.ctx, s.db, c))
	id := c.Id

	for _, name := range []string{"Acme Ltd", "Acme Group"} {
		s.tick()
		c.Name = name
		s.Require().NoError(Update(s.ctx, s.db, c))
	}
	s.Equal(id, c.Id)

	versions, err := s.db.History(s.ctx, "Customer", c.Fid)
	s.Require().NoError(err)
	s.Require().Len(versions, 1)
	s.Equal("Acme Group", versions[0].GetString("Name"))
	s.Contains(s.hooks.list(), "before-update:Acme Group")
}

func (s *DbContextSuite) TestTracedDeleteScenario() {
	rec := record.New("Product").Set("Name", "Lamp")
	_, err := s.db.InsertDynamic(s.ctx, rec)
	s.Require().NoError(err)
	fid := rec.GetString("Fid")
	s.tick()

	s.Require().NoError(s.db.DeleteDynamic(s.ctx, record.New("Product").Set("Fid", fid)))

	live, err := s.db.GetByFid(s.ctx, "Product", fid)
	s.Require().NoError(err)
	s.Nil(live)

	deleted, err := s.db.Query(s.ctx, "SELECT * FROM Product WHERE Fid = :Fid", map[string]any{"Fid": fid, "Dr": 1})
	s.Require().NoError(err)
	s.Require().Len(deleted, 1)
	s.Equal(1, deleted[0].GetInt("Dr"))
	s.Equal("Lamp", deleted[0].GetString("Name"))

	before := appctx.AsOf(s.ctx, utilities.FormatDateTime(s.clock.Add(-30*time.Second)))
	prior, err := s.db.GetByFid(before, "Product", fid)
	s.Require().NoError(err)
	s.Require().NotNil(prior)
	s.Equal(0, prior.GetInt("Dr"))

	versions, err := s.db.History(s.ctx, "Product", fid)
	s.Require().NoError(err)
	s.Len(versions, 2)
}

func (s *DbContextSuite) TestOuterJoinsSeeOnlyLiveVersions() {
	p := &product{Name: "Lamp", Price: 20}
	s.Require().NoError(Insert(s.ctx, s.db, p))
	for _, price := range []float64{25, 30} {
		s.tick()
		p.Price = price
		s.Require().NoError(Update(s.ctx, s.db, p))
	}
	for _, title := range []string{"Lamp", "Desk"} {
		_, err := s.db.InsertDynamic(s.ctx, record.New("PurchaseOrder").Set("Title", title))
		s.Require().NoError(err)
	}
	s.tick()

	const left = "SELECT o.Title, p.Price FROM PurchaseOrder o LEFT JOIN Product p ON p.Name = o.Title ORDER BY o.Title"
	rows, err := s.db.Query(s.ctx, left, nil)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("Desk", rows[0].GetString("Title"))
	s.Nil(rows[0].Get("Price"))
	s.InDelta(30.0, record.ToFloat64(rows[1].Get("Price")), 0.0001)

	const right = "SELECT p.Name, o.Title FROM PurchaseOrder o RIGHT JOIN Product p ON p.Name = o.Title"
	rows, err = s.db.Query(s.ctx, right, nil)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("Lamp", rows[0].GetString("Title"))

	s.Require().NoError(DeleteByFid[*product](s.ctx, s.db, p.Fid))
	rows, err = s.db.Query(s.ctx, right, nil)
	s.Require().NoError(err)
	s.Empty(rows)
	rows, err = s.db.Query(s.ctx, left, nil)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Nil(rows[1].Get("Price"))
}

func (s *DbContextSuite) TestUntracedDeleteFlagsInPlace() {
	c := &customer{Name: "Acme"}
	s.Require().NoError(Insert(s.ctx, s.db, c))
	s.Require().NoError(DeleteByFid[*customer](s.ctx, s.db, c.Fid))

	versions, err := s.db.History(s.ctx, "Customer", c.Fid)
	s.Require().NoError(err)
	s.Require().Len(versions, 1)
	s.Equal(1, versions[0].GetInt("Dr"))

	s.ErrorIs(DeleteByFid[*customer](s.ctx, s.db, c.Fid), dberr.ErrNotFound)
	s.ErrorIs(DeleteByID[*customer](s.ctx, s.db, 999), dberr.ErrNotFound)
}

func (s *DbContextSuite) TestQueryFamily() {
	empty, err := s.db.QueryFirstOrDefault(s.ctx, "SELECT * FROM Customer", nil)
	s.Require().NoError(err)
	s.Nil(empty)
	_, err = s.db.QueryFirst(s.ctx, "SELECT * FROM Customer", nil)
	s.ErrorIs(err, dberr.ErrNotFound)
	_, err = s.db.QuerySingle(s.ctx, "SELECT * FROM Customer", nil)
	s.ErrorIs(err, dberr.ErrNotFound)
	none, err := s.db.QuerySingleOrDefault(s.ctx, "SELECT * FROM Customer", nil)
	s.Require().NoError(err)
	s.Nil(none)

	s.Require().NoError(InsertBatch(s.ctx, s.db, []*customer{{Name: "A"}, {Name: "B"}}))

	_, err = s.db.QuerySingle(s.ctx, "SELECT * FROM Customer", nil)
	s.ErrorIs(err, dberr.ErrInvalidInput)
	_, err = s.db.QuerySingleOrDefault(s.ctx, "SELECT * FROM Customer", nil)
	s.ErrorIs(err, dberr.ErrInvalidInput)
	_, err = QuerySingle[*customer](s.ctx, s.db, "SELECT * FROM Customer", nil)
	s.ErrorIs(err, dberr.ErrInvalidInput)

	one, err := QuerySingle[*customer](s.ctx, s.db, "SELECT * FROM Customer WHERE Name = :Name", map[string]any{"Name": "B"})
	s.Require().NoError(err)
	s.Equal("B", one.Name)

	firstC, err := QueryFirst[*customer](s.ctx, s.db, "SELECT * FROM Customer ORDER BY Name DESC", nil)
	s.Require().NoError(err)
	s.Equal("B", firstC.Name)

	all, err := QueryAll[*customer](s.ctx, s.db)
	s.Require().NoError(err)
	s.Len(all, 2)

	a, err := QueryFirstOrDefaultWhere[*customer](s.ctx, s.db, "Name = :Name", map[string]any{"Name": "A"})
	s.Require().NoError(err)
	s.Require().NotNil(a)
	s.Equal("A", a.Name)

	z, err := QueryFirstOrDefaultWhere[*customer](s.ctx, s.db, "Name = :Name", map[string]any{"Name": "Z"})
	s.Require().NoError(err)
	s.Nil(z)

	n, err := Count[*customer](s.ctx, s.db, "", nil)
	s.Require().NoError(err)
	s.Equal(int64(2), n)
}

func (s *DbContextSuite) TestCountAndSum() {
	s.Require().NoError(InsertBatch(s.ctx, s.db, []*product{{Name: "A", Price: 1.5}, {Name: "B", Price: 2.5}}))

	total, err := Sum[*product](s.ctx, s.db, "Price", "", nil)
	s.Require().NoError(err)
	s.InDelta(4.0, total, 0.0001)

	n, err := s.db.Count(s.ctx, "Product", "Price > :Min", map[string]any{"Min": 2})
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	_, err = s.db.Sum(s.ctx, "Product", "Price; DROP TABLE Product", "", nil)
	s.ErrorIs(err, dberr.ErrInvalidInput)
}

func (s *DbContextSuite) TestHooksJoinTheWriteTransaction() {
	rec := record.New("Customer").Set("Name", "Acme")
	_, err := s.db.InsertDynamic(s.ctx, rec)
	s.Require().NoError(err)
	s.Equal([]string{"before-insert", "after-insert:1"}, s.hooks.list())

	s.Require().NoError(s.db.DeleteDynamic(s.ctx, rec))
	s.Contains(s.hooks.list(), "after-delete")
}

func (s *DbContextSuite) TestHookErrorRollsBack() {
	_, err := s.db.InsertDynamic(s.ctx, record.New("Customer").Set("Name", "after-fail"))
	s.Require().Error(err)

	n, err := s.db.Count(s.ctx, "Customer", "", nil)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *DbContextSuite) TestMetadataAndInputErrors() {
	_, err := s.db.InsertDynamic(s.ctx, record.New("Nope"))
	s.ErrorIs(err, dberr.ErrNotFound)
	_, err = s.db.InsertDynamic(s.ctx, record.New(""))
	s.ErrorIs(err, dberr.ErrInvalidInput)
	_, err = s.db.InsertDynamic(s.ctx, nil)
	s.ErrorIs(err, dberr.ErrInvalidInput)

	s.ErrorIs(Insert(s.ctx, s.db, &unknown{}), dberr.ErrNotFound)
	s.ErrorIs(s.db.UpdateDynamic(s.ctx, record.New("Customer").Set("Name", "x")), dberr.ErrInvalidInput)
	s.ErrorIs(s.db.DeleteDynamic(s.ctx, record.New("Customer")), dberr.ErrInvalidInput)
	s.ErrorIs(s.db.UpdateDynamic(s.ctx, record.New("Customer").Set("Id", 77)), dberr.ErrNotFound)

	_, err = s.db.GetByFid(s.ctx, "Customer", " ")
	s.ErrorIs(err, dberr.ErrInvalidInput)
}

func (s *DbContextSuite) TestTypedCallsRejectNonPointerTypes() {
	s.ErrorIs(Insert[record.Entity](s.ctx, s.db, &product{Name: "Lamp"}), dberr.ErrInvalidInput)
	_, err := Get[record.Entity](s.ctx, s.db, 1)
	s.ErrorIs(err, dberr.ErrInvalidInput)
	_, err = QueryFirst[record.Entity](s.ctx, s.db, "SELECT * FROM Product", nil)
	s.ErrorIs(err, dberr.ErrInvalidInput)
	_, err = Count[record.Entity](s.ctx, s.db, "", nil)
	s.ErrorIs(err, dberr.ErrInvalidInput)
	s.ErrorIs(DeleteByFid[record.Entity](s.ctx, s.db, "f1"), dberr.ErrInvalidInput)

	s.ErrorIs(Insert[*product](s.ctx, s.db, nil), dberr.ErrInvalidInput)
	s.ErrorIs(UpdateBatch(s.ctx, s.db, []*product{{Name: "A"}, nil}), dberr.ErrInvalidInput)
}

func (s *DbContextSuite) TestUpdateDynamicResolvesFidFromID() {
	rec := record.New("Product").Set("Name", "Lamp").Set("Price", 10.0)
	id, err := s.db.InsertDynamic(s.ctx, rec)
	s.Require().NoError(err)
	s.tick()

	upd := record.New("Product").Set("Id", id).Set("Price", 12.0)
	s.Require().NoError(s.db.UpdateDynamic(s.ctx, upd))
	s.Equal(rec.GetString("Fid"), upd.GetString("Fid"))
	s.NotEqual(id, upd.GetInt64("Id"))

	got, err := s.db.GetByFid(s.ctx, "Product", rec.GetString("Fid"))
	s.Require().NoError(err)
	s.Equal("Lamp", got.GetString("Name"))
	s.InDelta(12.0, record.ToFloat64(got.Get("Price")), 0.0001)
}

func (s *DbContextSuite) TestInsertDynamicBatchRunsParallelPreparation() {
	recs := make([]*record.Record, 20)
	for i := range recs {
		recs[i] = record.New("PurchaseOrder").Set("Title", fmt.Sprintf("order %d", i))
	}
	s.Require().NoError(s.db.InsertDynamicBatch(s.ctx, recs))

	codes := make(map[string]bool)
	fids := make(map[string]bool)
	for _, r := range recs {
		s.Positive(r.GetInt64("Id"))
		codes[r.GetString("BillCode")] = true
		fids[r.GetString("Fid")] = true
	}
	s.Len(codes, 20)
	s.Len(fids, 20)

	n, err := s.db.Count(s.ctx, "PurchaseOrder", "", nil)
	s.Require().NoError(err)
	s.Equal(int64(20), n)
}

func (s *DbContextSuite) TestInsertDynamicBatchIsAllOrNothing() {
	recs := []*record.Record{
		record.New("Customer").Set("Name", "ok-1"),
		record.New("Customer").Set("Name", "bad"),
		record.New("Customer").Set("Name", "ok-2"),
	}
	s.Require().Error(s.db.InsertDynamicBatch(s.ctx, recs))

	n, err := s.db.Count(s.ctx, "Customer", "", nil)
	s.Require().NoError(err)
	s.Zero(n)

	s.ErrorIs(s.db.InsertDynamicBatch(s.ctx, []*record.Record{record.New("Customer"), record.New("Nope")}), dberr.ErrNotFound)
}

func (s *DbContextSuite) TestInTransactionRollsBackEveryCall() {
	boom := errors.New("boom")
	err := s.db.InTransaction(s.ctx, func(ctx context.Context) error {
		if err := Insert(ctx, s.db, &product{Name: "A"}); err != nil {
			return err
		}
		if _, err := s.db.InsertDynamic(ctx, record.New("Product").Set("Name", "B")); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	n, err := s.db.Count(s.ctx, "Product", "", nil)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *DbContextSuite) TestBatchUpdateAndDelete() {
	ps := []*product{{Name: "A", Price: 1}, {Name: "B", Price: 2}}
	s.Require().NoError(InsertBatch(s.ctx, s.db, ps))
	s.tick()

	for _, p := range ps {
		p.Price *= 10
	}
	s.Require().NoError(UpdateBatch(s.ctx, s.db, ps))
	total, err := Sum[*product](s.ctx, s.db, "Price", "", nil)
	s.Require().NoError(err)
	s.InDelta(30.0, total, 0.0001)

	s.tick()
	s.Require().NoError(DeleteBatch(s.ctx, s.db, ps))
	n, err := Count[*product](s.ctx, s.db, "", nil)
	s.Require().NoError(err)
	s.Zero(n)

	recs := []*record.Record{record.New("Customer").Set("Name", "x"), record.New("Customer").Set("Name", "y")}
	s.Require().NoError(s.db.InsertDynamicBatch(s.ctx, recs))
	for _, r := range recs {
		r.Set("Name", r.GetString("Name")+"!")
	}
	s.Require().NoError(s.db.UpdateDynamicBatch(s.ctx, recs))
	renamed, err := s.db.QueryWhere(s.ctx, "Customer", "Name LIKE :P", map[string]any{"P": "%!"})
	s.Require().NoError(err)
	s.Len(renamed, 2)

	s.Require().NoError(s.db.DeleteDynamicBatch(s.ctx, recs))
	n, err = s.db.Count(s.ctx, "Customer", "", nil)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *DbContextSuite) TestExecuteAndDeleteExec() {
	s.Require().NoError(InsertBatch(s.ctx, s.db, []*customer{{Name: "A"}, {Name: "B"}}))

	n, err := s.db.Execute(s.ctx, "UPDATE Customer SET Name = :Name WHERE Name = 'A'", map[string]any{"Name": "C"})
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	v, err := s.db.ExecuteScalar(s.ctx, "SELECT COUNT(1) FROM Customer WHERE Name = :Name", map[string]any{"Name": "C"})
	s.Require().NoError(err)
	s.Equal(int64(1), record.ToInt64(v))

	gone, err := s.db.DeleteExec(s.ctx, "Customer", "Name = :Name", map[string]any{"Name": "B"})
	s.Require().NoError(err)
	s.Equal(int64(1), gone)

	_, err = s.db.DeleteExec(s.ctx, "Customer", "", nil)
	s.ErrorIs(err, dberr.ErrInvalidInput)
}

func (s *DbContextSuite) TestSequencesAndBillCodes() {
	for want := 1; want <= 3; want++ {
		v, err := s.db.NextSequence(s.ctx, "Invoice")
		s.Require().NoError(err)
		s.Equal(want, v)
	}

	codes, err := s.db.GenerateBillCode(s.ctx, "PurchaseOrder")
	s.Require().NoError(err)
	s.Equal(map[string]string{"BillCode": "0000001"}, codes)

	none, err := s.db.GenerateBillCode(s.ctx, "Customer")
	s.Require().NoError(err)
	s.Nil(none)

	_, err = s.db.GenerateBillCode(s.ctx, "Nope")
	s.ErrorIs(err, dberr.ErrNotFound)
}
