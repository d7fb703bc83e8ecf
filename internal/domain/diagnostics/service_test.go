package diagnostics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/hms/internal/domain/billing"
	"github.com/clinicore/hms/internal/domain/directory"
	"github.com/clinicore/hms/internal/domain/encounter"
	"github.com/clinicore/hms/internal/domain/queue"
	"github.com/clinicore/hms/pkg/pagination"
)

// ---- mock repositories ----

type mockOrderRepo struct {
	orders map[uuid.UUID]*Order
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[uuid.UUID]*Order)}
}

func (m *mockOrderRepo) Create(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	if o.RequestedAt.IsZero() {
		o.RequestedAt = now
	}
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) Update(ctx context.Context, o *Order) error {
	if _, ok := m.orders[o.ID]; !ok {
		return ErrNotFound
	}
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) GetByInvoiceItem(ctx context.Context, itemID uuid.UUID) (*Order, error) {
	for _, o := range m.orders {
		if o.InvoiceItemID != nil && *o.InvoiceItemID == itemID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockOrderRepo) List(ctx context.Context, f OrderFilter, p pagination.Params) ([]*Order, int, error) {
	var out []*Order
	for _, o := range m.orders {
		cp := *o
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockOrderRepo) Stats(ctx context.Context, focus string) (*Stats, error) {
	var s Stats
	for _, o := range m.orders {
		switch o.Status {
		case StatusPending:
			s.PendingOrders++
		case StatusInProgress:
			s.InProgressOrders++
		}
	}
	return &s, nil
}

type mockReportRepo struct {
	reports map[uuid.UUID]*Report // keyed by order ID
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{reports: make(map[uuid.UUID]*Report)}
}

func (m *mockReportRepo) Upsert(ctx context.Context, r *Report) (bool, error) {
	existing, ok := m.reports[r.OrderID]
	if !ok {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		r.CreatedAt = time.Now()
		r.UpdatedAt = r.CreatedAt
		cp := *r
		m.reports[r.OrderID] = &cp
		return false, nil
	}
	wasFinal := existing.IsFinal
	r.ID = existing.ID
	r.CreatedAt = existing.CreatedAt
	r.CreatedBy = existing.CreatedBy
	r.UpdatedAt = time.Now()
	cp := *r
	m.reports[r.OrderID] = &cp
	return wasFinal, nil
}

func (m *mockReportRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Report, error) {
	r, ok := m.reports[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

type mockParamRepo struct {
	params []*Parameter
}

func (m *mockParamRepo) Create(ctx context.Context, p *Parameter) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	cp := *p
	m.params = append(m.params, &cp)
	return nil
}

func (m *mockParamRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Parameter, error) {
	var out []*Parameter
	for _, p := range m.params {
		if p.OrderID == orderID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockInvoiceRepo struct {
	invoices map[uuid.UUID]*billing.Invoice
	items    map[uuid.UUID][]*billing.InvoiceItem // by invoice
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{
		invoices: make(map[uuid.UUID]*billing.Invoice),
		items:    make(map[uuid.UUID][]*billing.InvoiceItem),
	}
}

func (m *mockInvoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, billing.ErrNotFound
	}
	return inv, nil
}

func (m *mockInvoiceRepo) GetItems(ctx context.Context, invoiceID uuid.UUID) ([]*billing.InvoiceItem, error) {
	return m.items[invoiceID], nil
}

type mockItemRepo struct {
	items map[uuid.UUID]*billing.InvoiceItem
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{items: make(map[uuid.UUID]*billing.InvoiceItem)}
}

func (m *mockItemRepo) GetByID(ctx context.Context, id uuid.UUID) (*billing.InvoiceItem, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, billing.ErrNotFound
	}
	return it, nil
}

type mockServiceRepo struct {
	services map[uuid.UUID]*billing.HospitalService
}

func newMockServiceRepo() *mockServiceRepo {
	return &mockServiceRepo{services: make(map[uuid.UUID]*billing.HospitalService)}
}

func (m *mockServiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*billing.HospitalService, error) {
	s, ok := m.services[id]
	if !ok {
		return nil, billing.ErrNotFound
	}
	return s, nil
}

type mockVisitRepo struct {
	visits map[uuid.UUID]*encounter.Visit
}

func newMockVisitRepo() *mockVisitRepo {
	return &mockVisitRepo{visits: make(map[uuid.UUID]*encounter.Visit)}
}

func (m *mockVisitRepo) GetByID(ctx context.Context, id uuid.UUID) (*encounter.Visit, error) {
	v, ok := m.visits[id]
	if !ok {
		return nil, encounter.ErrNotFound
	}
	return v, nil
}

func (m *mockVisitRepo) GetActiveForPatient(ctx context.Context, patientID uuid.UUID) (*encounter.Visit, error) {
	for _, v := range m.visits {
		if v.PatientID == patientID {
			return v, nil
		}
	}
	return nil, encounter.ErrNotFound
}

type mockQueueRepo struct {
	entries   map[uuid.UUID]*queue.Entry
	deptNames map[uuid.UUID]string
}

func newMockQueueRepo() *mockQueueRepo {
	return &mockQueueRepo{
		entries:   make(map[uuid.UUID]*queue.Entry),
		deptNames: make(map[uuid.UUID]string),
	}
}

func (m *mockQueueRepo) Create(ctx context.Context, e *queue.Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *mockQueueRepo) Update(ctx context.Context, e *queue.Entry) error {
	if _, ok := m.entries[e.ID]; !ok {
		return queue.ErrNotFound
	}
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *mockQueueRepo) GetByID(ctx context.Context, id uuid.UUID) (*queue.Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, queue.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockQueueRepo) FindPending(ctx context.Context, visitID, sentToID uuid.UUID) (*queue.Entry, error) {
	for _, e := range m.entries {
		if e.VisitID == visitID && e.SentToID == sentToID && e.Status == queue.StatusPending {
			cp := *e
			return &cp, nil
		}
	}
	return nil, queue.ErrNotFound
}

func (m *mockQueueRepo) FindPendingByDeptName(ctx context.Context, visitID uuid.UUID, deptName string) ([]*queue.Entry, error) {
	var out []*queue.Entry
	for _, e := range m.entries {
		if e.VisitID == visitID && e.Status == queue.StatusPending && m.deptNames[e.SentToID] == deptName {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockQueueRepo) ListByDepartment(ctx context.Context, deptID uuid.UUID, status string, p pagination.Params) ([]*queue.Entry, int, error) {
	return nil, 0, nil
}

func (m *mockQueueRepo) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*queue.Entry, error) {
	var out []*queue.Entry
	for _, e := range m.entries {
		if e.VisitID == visitID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockDirectory struct {
	depts []*directory.Department
}

func (m *mockDirectory) FindByNameContains(ctx context.Context, fragment string) ([]*directory.Department, error) {
	var out []*directory.Department
	for _, d := range m.depts {
		if strings.Contains(strings.ToLower(d.Name), strings.ToLower(fragment)) {
			out = append(out, d)
		}
	}
	return out, nil
}

// ---- fixture ----

type fixture struct {
	svc       *Service
	orders    *mockOrderRepo
	reports   *mockReportRepo
	params    *mockParamRepo
	invoices  *mockInvoiceRepo
	items     *mockItemRepo
	services  *mockServiceRepo
	visits    *mockVisitRepo
	queueRepo *mockQueueRepo
	dir       *mockDirectory

	labDept     uuid.UUID
	consultDept uuid.UUID
	patient     uuid.UUID
	visit       *encounter.Visit
	invoice     *billing.Invoice
	item        *billing.InvoiceItem
	service     *billing.HospitalService
}

func newFixture() *fixture {
	f := &fixture{
		orders:    newMockOrderRepo(),
		reports:   newMockReportRepo(),
		params:    &mockParamRepo{},
		invoices:  newMockInvoiceRepo(),
		items:     newMockItemRepo(),
		services:  newMockServiceRepo(),
		visits:    newMockVisitRepo(),
		queueRepo: newMockQueueRepo(),
		dir:       &mockDirectory{},
	}

	f.labDept = uuid.New()
	f.consultDept = uuid.New()
	f.queueRepo.deptNames[f.labDept] = "Lab"
	f.dir.depts = []*directory.Department{
		{ID: f.labDept, Name: "Main Lab"},
		{ID: f.consultDept, Name: "Consultation"},
	}

	f.patient = uuid.New()
	visitID := uuid.New()
	f.visit = &encounter.Visit{
		ID: visitID, PatientID: f.patient,
		VisitType: encounter.TypeOutpatient, PaymentMethod: "Cash",
		IsActive: true, VisitDate: time.Now(),
	}
	f.visits.visits[visitID] = f.visit

	labName := "Main Lab"
	svcID := uuid.New()
	f.service = &billing.HospitalService{
		ID: svcID, Name: "Full Blood Count",
		DepartmentID: &f.labDept, DepartmentName: &labName, Price: 500, IsActive: true,
	}
	f.services.services[svcID] = f.service

	invoiceID := uuid.New()
	f.invoice = &billing.Invoice{
		ID: invoiceID, PatientID: f.patient, VisitID: &visitID,
		Status: billing.InvoicePending, TotalAmount: 500,
	}
	f.invoices.invoices[invoiceID] = f.invoice

	itemID := uuid.New()
	f.item = &billing.InvoiceItem{
		ID: itemID, InvoiceID: invoiceID, ServiceID: &svcID,
		Name: "Full Blood Count", Quantity: 1, UnitPrice: 500,
		Amount: 500, PaidAmount: 500,
	}
	f.items.items[itemID] = f.item
	f.invoices.items[invoiceID] = []*billing.InvoiceItem{f.item}

	engine := queue.NewEngine(f.queueRepo, nil, zerolog.Nop())
	f.svc = NewService(ServiceDeps{
		Orders: f.orders, Reports: f.reports, Params: f.params,
		Invoices: f.invoices, Items: f.items, Services: f.services,
		Visits: f.visits, Queue: engine, Depts: f.dir,
		Logger:               zerolog.Nop(),
		ExemptPaymentMethods: []string{"SHA"},
		FallbackDepartment:   "Consultation",
	})
	return f
}

func (f *fixture) createOrder(t *testing.T) *Order {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), ByItem(f.item.ID), CreateOrderInput{ActorID: "clin-1"})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return order
}

// sets the order's joined department name the way repo_pg queries would
func (f *fixture) withDeptName(o *Order) *Order {
	o.DepartmentName = f.service.DepartmentName
	f.orders.orders[o.ID].DepartmentName = f.service.DepartmentName
	return o
}

// ---- tests ----

func TestCreateOrderIdempotentPerInvoiceItem(t *testing.T) {
	f := newFixture()

	first := f.createOrder(t)
	second := f.createOrder(t)
	if second.ID != first.ID {
		t.Fatalf("second create returned a new order")
	}
	if len(f.orders.orders) != 1 {
		t.Errorf("stored orders = %d, want 1", len(f.orders.orders))
	}
	if first.Status != StatusPending {
		t.Errorf("Status = %q, want %q", first.Status, StatusPending)
	}
	if first.Priority != PriorityNormal {
		t.Errorf("Priority = %q, want %q", first.Priority, PriorityNormal)
	}
}

func TestCreateOrderDeniedWhenItemUnpaid(t *testing.T) {
	f := newFixture()
	f.item.PaidAmount = 0

	_, err := f.svc.CreateOrder(context.Background(), ByItem(f.item.ID), CreateOrderInput{ActorID: "clin-1"})
	var denied *billing.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err = %v, want DeniedError", err)
	}
	if denied.Reason != billing.ReasonItemUnpaid {
		t.Errorf("Reason = %q, want %q", denied.Reason, billing.ReasonItemUnpaid)
	}
	if len(f.orders.orders) != 0 {
		t.Errorf("denied create must not persist an order")
	}
}

func TestCreateOrderExemptMethodSkipsGate(t *testing.T) {
	f := newFixture()
	f.item.PaidAmount = 0
	f.visit.PaymentMethod = "SHA"

	if _, err := f.svc.CreateOrder(context.Background(), ByItem(f.item.ID), CreateOrderInput{ActorID: "clin-1"}); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
}

func TestCreateOrderInpatientSkipsGate(t *testing.T) {
	f := newFixture()
	f.item.PaidAmount = 0
	f.visit.VisitType = encounter.TypeInpatient

	if _, err := f.svc.CreateOrder(context.Background(), ByItem(f.item.ID), CreateOrderInput{ActorID: "clin-1"}); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
}

func TestCreateOrderBypassSkipsGate(t *testing.T) {
	f := newFixture()
	f.item.PaidAmount = 0

	_, err := f.svc.CreateOrder(context.Background(), ByItem(f.item.ID), CreateOrderInput{
		ActorID: "back-office-1", BypassGate: true,
	})
	if err != nil {
		t.Fatalf("CreateOrder with bypass: %v", err)
	}
}

func TestCreateOrderByInvoiceFallbackMatch(t *testing.T) {
	f := newFixture()
	// No linked item: the gate falls back to matching a settled line for the
	// ordered service.
	order, err := f.svc.CreateOrder(context.Background(),
		ByInvoice(f.invoice.ID, f.service.ID), CreateOrderInput{ActorID: "clin-1"})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.InvoiceItemID != nil {
		t.Errorf("group order should not link an item")
	}
}

func TestCreateOrderByInvoiceDeniedWhenNothingSettled(t *testing.T) {
	f := newFixture()
	f.item.PaidAmount = 0

	_, err := f.svc.CreateOrder(context.Background(),
		ByInvoice(f.invoice.ID, f.service.ID), CreateOrderInput{ActorID: "clin-1"})
	var denied *billing.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err = %v, want DeniedError", err)
	}
	if denied.Reason != billing.ReasonInvoiceUnpaid {
		t.Errorf("Reason = %q, want %q", denied.Reason, billing.ReasonInvoiceUnpaid)
	}
}

func TestCreateOrderUnknownSource(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateOrder(context.Background(), ByItem(uuid.New()), CreateOrderInput{ActorID: "clin-1"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateStatusStampsCompletedAtOnce(t *testing.T) {
	f := newFixture()
	order := f.createOrder(t)

	done, err := f.svc.UpdateStatus(context.Background(), order, UpdateStatusInput{
		Status: StatusCompleted, ActorID: "tech-1",
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if done.CompletedAt == nil {
		t.Fatal("completed_at not stamped")
	}
	firstStamp := *done.CompletedAt

	// Move away and back; the stamp must not change.
	if _, err := f.svc.UpdateStatus(context.Background(), order, UpdateStatusInput{
		Status: StatusInProgress, ActorID: "tech-1",
	}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	again, err := f.svc.UpdateStatus(context.Background(), order, UpdateStatusInput{
		Status: StatusCompleted, ActorID: "tech-2",
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if again.CompletedAt == nil || !again.CompletedAt.Equal(firstStamp) {
		t.Errorf("completed_at changed on re-completion")
	}
}

func TestUpdateStatusDefaultsPerformer(t *testing.T) {
	f := newFixture()
	order := f.createOrder(t)

	updated, err := f.svc.UpdateStatus(context.Background(), order, UpdateStatusInput{
		Status: StatusInProgress, ActorID: "tech-1",
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.PerformedBy == nil || *updated.PerformedBy != "tech-1" {
		t.Fatalf("performer not defaulted to acting user")
	}

	// A later actor does not displace the recorded performer.
	updated, err = f.svc.UpdateStatus(context.Background(), order, UpdateStatusInput{
		Status: StatusCompleted, ActorID: "tech-2",
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if *updated.PerformedBy != "tech-1" {
		t.Errorf("performer overwritten by later update")
	}
}

func TestAttachReportFinalizeRoutesBack(t *testing.T) {
	f := newFixture()
	order := f.withDeptName(f.createOrder(t))

	// Visit currently pending at the lab, routed from consultation.
	_, err := queue.NewEngine(f.queueRepo, nil, zerolog.Nop()).Enqueue(context.Background(), queue.EnqueueInput{
		VisitID: f.visit.ID, PatientID: f.patient, SentToID: f.labDept, QuedFromID: &f.consultDept,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	report, err := f.svc.AttachReport(context.Background(), order, ReportInput{
		Body: "all values normal", IsFinal: true, ActorID: "tech-1",
	})
	if err != nil {
		t.Fatalf("AttachReport: %v", err)
	}
	if !report.IsFinal {
		t.Fatal("report not final")
	}

	var review *queue.Entry
	for _, e := range f.queueRepo.entries {
		switch {
		case e.SentToID == f.labDept && e.Status != queue.StatusCompleted:
			t.Errorf("lab entry not completed")
		case e.SentToID == f.consultDept:
			review = e
		}
	}
	if review == nil {
		t.Fatal("no review entry created at origin department")
	}
	if review.EntryType != queue.TypeReview {
		t.Errorf("EntryType = %q, want %q", review.EntryType, queue.TypeReview)
	}
	if review.Status != queue.StatusPending {
		t.Errorf("review entry Status = %q, want %q", review.Status, queue.StatusPending)
	}
	if review.QuedFromID == nil || *review.QuedFromID != f.labDept {
		t.Errorf("review entry origin should be the performing department")
	}
}

func TestAttachReportRefinalizeDoesNotRouteAgain(t *testing.T) {
	f := newFixture()
	order := f.withDeptName(f.createOrder(t))

	if _, err := f.svc.AttachReport(context.Background(), order, ReportInput{
		Body: "v1", IsFinal: true, ActorID: "tech-1",
	}); err != nil {
		t.Fatalf("AttachReport: %v", err)
	}
	entriesAfterFirst := len(f.queueRepo.entries)

	if _, err := f.svc.AttachReport(context.Background(), order, ReportInput{
		Body: "v2 corrected", IsFinal: true, ActorID: "tech-1",
	}); err != nil {
		t.Fatalf("second AttachReport: %v", err)
	}
	if len(f.queueRepo.entries) != entriesAfterFirst {
		t.Errorf("re-finalizing routed again")
	}

	rep, err := f.reports.GetByOrderID(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("GetByOrderID: %v", err)
	}
	if rep.Body != "v2 corrected" {
		t.Errorf("report body not updated in place")
	}
}

func TestAttachReportDraftDoesNotRoute(t *testing.T) {
	f := newFixture()
	order := f.withDeptName(f.createOrder(t))

	if _, err := f.svc.AttachReport(context.Background(), order, ReportInput{
		Body: "preliminary", IsFinal: false, ActorID: "tech-1",
	}); err != nil {
		t.Fatalf("AttachReport: %v", err)
	}
	if len(f.queueRepo.entries) != 0 {
		t.Errorf("draft report must not route")
	}

	// Draft then final: the false-to-true edge routes exactly once.
	if _, err := f.svc.AttachReport(context.Background(), order, ReportInput{
		Body: "final", IsFinal: true, ActorID: "tech-1",
	}); err != nil {
		t.Fatalf("AttachReport final: %v", err)
	}
	if len(f.queueRepo.entries) != 1 {
		t.Errorf("entries = %d, want 1 review entry", len(f.queueRepo.entries))
	}
}

func TestHandbackNoVisitIsNoOp(t *testing.T) {
	f := newFixture()
	f.invoice.VisitID = nil
	order := f.withDeptName(f.createOrder(t))

	if _, err := f.svc.AttachReport(context.Background(), order, ReportInput{
		Body: "done", IsFinal: true, ActorID: "tech-1",
	}); err != nil {
		t.Fatalf("AttachReport: %v", err)
	}
	if len(f.queueRepo.entries) != 0 {
		t.Errorf("no-visit finalization must not route")
	}
}

func TestHandbackFallsBackToConsultation(t *testing.T) {
	f := newFixture()
	order := f.withDeptName(f.createOrder(t))

	// No pending lab entry, so no recorded origin; routing falls back to the
	// configured department.
	if _, err := f.svc.AttachReport(context.Background(), order, ReportInput{
		Body: "done", IsFinal: true, ActorID: "tech-1",
	}); err != nil {
		t.Fatalf("AttachReport: %v", err)
	}

	var found bool
	for _, e := range f.queueRepo.entries {
		if e.SentToID == f.consultDept && e.EntryType == queue.TypeReview {
			found = true
		}
	}
	if !found {
		t.Error("review entry not routed to fallback department")
	}
}

func TestHandbackMissingFallbackIsNoOp(t *testing.T) {
	f := newFixture()
	f.dir.depts = nil
	order := f.withDeptName(f.createOrder(t))

	if _, err := f.svc.AttachReport(context.Background(), order, ReportInput{
		Body: "done", IsFinal: true, ActorID: "tech-1",
	}); err != nil {
		t.Fatalf("AttachReport: %v", err)
	}
	if len(f.queueRepo.entries) != 0 {
		t.Errorf("unresolvable destination must not route")
	}
}

func TestCheckOrderAccessTracksSettlementChanges(t *testing.T) {
	f := newFixture()
	order := f.createOrder(t)

	if err := f.svc.CheckOrderAccess(context.Background(), order); err != nil {
		t.Fatalf("CheckOrderAccess on settled item: %v", err)
	}

	// A refund after creation closes the gate again.
	f.item.PaidAmount = 0
	err := f.svc.CheckOrderAccess(context.Background(), order)
	var denied *billing.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err = %v, want DeniedError after refund", err)
	}
}

func TestAddParameter(t *testing.T) {
	f := newFixture()
	order := f.createOrder(t)

	unit := "g/dL"
	p, err := f.svc.AddParameter(context.Background(), order.ID, ParameterInput{
		Name: "Hemoglobin", Value: "13.5", Unit: &unit,
	})
	if err != nil {
		t.Fatalf("AddParameter: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Error("parameter not assigned an id")
	}

	detail, err := f.svc.GetOrderDetail(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("GetOrderDetail: %v", err)
	}
	if len(detail.Parameters) != 1 {
		t.Errorf("parameters = %d, want 1", len(detail.Parameters))
	}
}

func TestDenyThenSettleThenAccess(t *testing.T) {
	f := newFixture()
	f.item.PaidAmount = 0

	// Unpaid: the order is refused outright.
	_, err := f.svc.CreateOrder(context.Background(), ByItem(f.item.ID), CreateOrderInput{ActorID: "clin-1"})
	var denied *billing.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err = %v, want DeniedError", err)
	}

	// Payment lands; the same call now creates, and a repeat returns the
	// same order rather than a duplicate.
	f.item.PaidAmount = f.item.Amount
	order, err := f.svc.CreateOrder(context.Background(), ByItem(f.item.ID), CreateOrderInput{ActorID: "clin-1"})
	if err != nil {
		t.Fatalf("CreateOrder after settlement: %v", err)
	}
	repeat, err := f.svc.CreateOrder(context.Background(), ByItem(f.item.ID), CreateOrderInput{ActorID: "clin-2"})
	if err != nil {
		t.Fatalf("repeat CreateOrder: %v", err)
	}
	if repeat.ID != order.ID {
		t.Fatal("repeat create duplicated the order")
	}

	if err := f.svc.CheckOrderAccess(context.Background(), order); err != nil {
		t.Errorf("detail access after settlement: %v", err)
	}
}

func TestFocusForRoles(t *testing.T) {
	if got := FocusForRoles([]string{"radiographer"}); got != FocusImaging {
		t.Errorf("FocusForRoles(radiographer) = %q", got)
	}
	if got := FocusForRoles([]string{"lab_tech"}); got != FocusLab {
		t.Errorf("FocusForRoles(lab_tech) = %q", got)
	}
	if got := FocusForRoles(nil); got != FocusLab {
		t.Errorf("FocusForRoles(nil) = %q", got)
	}
}
