package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearleseed/device-hub-sub001/models"
)

var (
	admin = Actor{ID: "admin-1", IsAdmin: true}
	alice = Actor{ID: "alice"}
	bob   = Actor{ID: "bob"}
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	audits []AuditRecord
}

func (r *recorder) Notify(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Record(_ context.Context, rec AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, rec)
	return nil
}

func (r *recorder) eventTypes() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc   *Service
	store *memStore
	rec   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	store.addDevice("D", "Pixel 8", models.DeviceAvailable)

	coord, err := NewCoordinator(store, nil, WithBaseDelay(time.Millisecond))
	require.NoError(t, err)

	rec := &recorder{}
	clock := func() time.Time { return day("2024-01-01").Add(9 * time.Hour) }
	svc := NewService(coord, WithNotifier(rec), WithAuditor(rec), WithClock(clock))
	t.Cleanup(svc.Close)
	return &fixture{svc: svc, store: store, rec: rec}
}

func (f *fixture) borrow(t *testing.T, actor Actor, start, end string) *models.BorrowRequest {
	t.Helper()
	b, err := f.svc.CreateBorrow(context.Background(), CreateBorrow{
		DeviceID: "D", Start: day(start), End: day(end), Reason: "testing", Actor: actor,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) setStatus(t *testing.T, id string, target models.BorrowStatus) {
	t.Helper()
	_, err := f.svc.SetBorrowStatus(context.Background(), SetBorrowStatus{RequestID: id, Target: target, Actor: admin})
	require.NoError(t, err)
}

func (f *fixture) activeBorrow(t *testing.T, actor Actor, start, end string) *models.BorrowRequest {
	t.Helper()
	b := f.borrow(t, actor, start, end)
	f.setStatus(t, b.ID, models.BorrowApproved)
	f.setStatus(t, b.ID, models.BorrowActive)
	return b
}

func TestLifecycle_BorrowApproveActivateReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.borrow(t, alice, "2024-01-01", "2024-01-10")
	assert.Equal(t, models.BorrowPending, b.Status)

	f.setStatus(t, b.ID, models.BorrowApproved)
	assert.Equal(t, models.BorrowApproved, f.store.borrow(b.ID).Status)
	assert.Equal(t, admin.ID, *f.store.borrow(b.ID).ApprovedBy)

	f.setStatus(t, b.ID, models.BorrowActive)
	assert.Equal(t, models.DeviceBorrowed, f.store.device("D").Status)

	_, err := f.svc.CreateBorrow(ctx, CreateBorrow{DeviceID: "D", Start: day("2024-01-05"), End: day("2024-01-12"), Actor: bob})
	assert.ErrorIs(t, err, ErrConflict)

	r, err := f.svc.CreateReturn(ctx, CreateReturn{BorrowRequestID: b.ID, Condition: models.ConditionGood, Actor: alice})
	require.NoError(t, err)
	assert.Equal(t, "D", r.DeviceID)
	assert.Equal(t, models.BorrowReturned, f.store.borrow(b.ID).Status)
	assert.Equal(t, models.DeviceAvailable, f.store.device("D").Status)

	f.svc.Close()
	assert.ElementsMatch(t, []EventType{
		EventBorrowCreated, EventBorrowApproved, EventBorrowActivated, EventBorrowReturned,
	}, f.rec.eventTypes())
}

func TestCreateBorrow_BackToBackIsAllowed(t *testing.T) {
	f := newFixture(t)
	f.borrow(t, alice, "2024-01-01", "2024-01-10")
	f.borrow(t, bob, "2024-01-10", "2024-01-15")
}

func TestCreateBorrow_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBorrow(ctx, CreateBorrow{DeviceID: "D", Start: day("2023-12-31"), End: day("2024-01-03"), Actor: alice})
	assert.ErrorIs(t, err, ErrValidation, "start in the past")

	_, err = f.svc.CreateBorrow(ctx, CreateBorrow{DeviceID: "D", Start: day("2024-01-03"), End: day("2024-01-03"), Actor: alice})
	assert.ErrorIs(t, err, ErrValidation, "empty interval")

	_, err = f.svc.CreateBorrow(ctx, CreateBorrow{Start: day("2024-01-03"), End: day("2024-01-04"), Actor: alice})
	assert.ErrorIs(t, err, ErrValidation, "missing device")

	_, err = f.svc.CreateBorrow(ctx, CreateBorrow{DeviceID: "nope", Start: day("2024-01-03"), End: day("2024-01-04"), Actor: alice})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.CreateBorrow(ctx, CreateBorrow{DeviceID: "D", Start: day("2024-01-03"), End: day("2024-01-04")})
	assert.ErrorIs(t, err, ErrPermission, "anonymous actor")

	f.store.setDevice("D", models.DeviceMaintenance)
	_, err = f.svc.CreateBorrow(ctx, CreateBorrow{DeviceID: "D", Start: day("2024-01-03"), End: day("2024-01-04"), Actor: alice})
	assert.ErrorIs(t, err, ErrConflict, "device in maintenance")
}

func TestCreateBorrow_TodayIsUTCDate(t *testing.T) {
	nyc := time.FixedZone("UTC-5", -5*3600)
	store := newMemStore()
	store.addDevice("D", "Pixel 8", models.DeviceAvailable)
	coord, err := NewCoordinator(store, nil, WithBaseDelay(time.Millisecond))
	require.NoError(t, err)

	// 23:00 in New York is already 2024-01-02 in UTC.
	clock := func() time.Time { return time.Date(2024, 1, 1, 23, 0, 0, 0, nyc) }
	svc := NewService(coord, WithClock(clock))
	t.Cleanup(svc.Close)
	ctx := context.Background()

	_, err = svc.CreateBorrow(ctx, CreateBorrow{DeviceID: "D", Start: day("2024-01-01"), End: day("2024-01-03"), Actor: alice})
	assert.ErrorIs(t, err, ErrValidation, "start before today in UTC")

	// 19:30 on 2024-01-01 in New York is 2024-01-02 00:30 UTC.
	b, err := svc.CreateBorrow(ctx, CreateBorrow{
		DeviceID: "D",
		Start:    time.Date(2024, 1, 1, 19, 30, 0, 0, nyc),
		End:      time.Date(2024, 1, 3, 21, 0, 0, 0, nyc),
		Actor:    alice,
	})
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-02"), b.StartDate)
	assert.Equal(t, day("2024-01-04"), b.EndDate)

	// [2024-01-04, 2024-01-05) UTC touches the first booking back to back.
	_, err = svc.CreateBorrow(ctx, CreateBorrow{
		DeviceID: "D",
		Start:    time.Date(2024, 1, 3, 20, 0, 0, 0, nyc),
		End:      day("2024-01-05"),
		Actor:    bob,
	})
	assert.NoError(t, err)
}

func TestCreateBorrow_ConcurrentOverlapOnlyOneWins(t *testing.T) {
	f := newFixture(t)

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.svc.CreateBorrow(context.Background(), CreateBorrow{
				DeviceID: "D",
				Start:    day("2024-01-02").AddDate(0, 0, i%3),
				End:      day("2024-01-08"),
				Actor:    Actor{ID: fmt.Sprintf("user-%d", i)},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
}

func TestSetBorrowStatus_TransitionClosure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.activeBorrow(t, alice, "2024-01-01", "2024-01-10")
	_, err := f.svc.CreateReturn(ctx, CreateReturn{BorrowRequestID: b.ID, Condition: models.ConditionGood, Actor: alice})
	require.NoError(t, err)

	for _, target := range []models.BorrowStatus{models.BorrowActive, models.BorrowApproved, models.BorrowPending, models.BorrowRejected} {
		_, err := f.svc.SetBorrowStatus(ctx, SetBorrowStatus{RequestID: b.ID, Target: target, Actor: admin})
		assert.ErrorIs(t, err, ErrInvalidTransition, target)
	}
	assert.Equal(t, models.BorrowReturned, f.store.borrow(b.ID).Status)
	assert.Equal(t, models.DeviceAvailable, f.store.device("D").Status)
}

func TestSetBorrowStatus_Permissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.borrow(t, alice, "2024-01-01", "2024-01-10")
	_, err := f.svc.SetBorrowStatus(ctx, SetBorrowStatus{RequestID: b.ID, Target: models.BorrowApproved, Actor: alice})
	assert.ErrorIs(t, err, ErrPermission)

	f.setStatus(t, b.ID, models.BorrowApproved)
	f.setStatus(t, b.ID, models.BorrowActive)

	_, err = f.svc.SetBorrowStatus(ctx, SetBorrowStatus{RequestID: b.ID, Target: models.BorrowReturned, Actor: admin})
	assert.ErrorIs(t, err, ErrPermission, "returned is reachable only by creating a return")
	assert.Equal(t, models.BorrowActive, f.store.borrow(b.ID).Status)

	_, err = f.svc.SetBorrowStatus(ctx, SetBorrowStatus{RequestID: "missing", Target: models.BorrowApproved, Actor: admin})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetBorrowStatus_RejectFreesInterval(t *testing.T) {
	f := newFixture(t)

	b := f.borrow(t, alice, "2024-01-01", "2024-01-10")
	f.setStatus(t, b.ID, models.BorrowRejected)
	assert.Equal(t, models.DeviceAvailable, f.store.device("D").Status)

	f.borrow(t, bob, "2024-01-03", "2024-01-06")
}

func TestSetBorrowStatus_RejectKeepsMaintenance(t *testing.T) {
	f := newFixture(t)

	b := f.borrow(t, alice, "2024-01-01", "2024-01-10")
	f.store.setDevice("D", models.DeviceMaintenance)
	f.setStatus(t, b.ID, models.BorrowRejected)

	assert.Equal(t, models.DeviceMaintenance, f.store.device("D").Status)
}

func TestSetBorrowStatus_ActivationGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.activeBorrow(t, alice, "2024-01-01", "2024-01-03")
	second := f.borrow(t, bob, "2024-01-03", "2024-01-05")
	f.setStatus(t, second.ID, models.BorrowApproved)

	_, err := f.svc.SetBorrowStatus(ctx, SetBorrowStatus{RequestID: second.ID, Target: models.BorrowActive, Actor: admin})
	assert.ErrorIs(t, err, ErrConflict, "previous loan not returned yet")

	_, err = f.svc.CreateReturn(ctx, CreateReturn{BorrowRequestID: first.ID, Condition: models.ConditionDamaged, Notes: "cracked screen", Actor: alice})
	require.NoError(t, err)

	_, err = f.svc.SetBorrowStatus(ctx, SetBorrowStatus{RequestID: second.ID, Target: models.BorrowActive, Actor: admin})
	assert.ErrorIs(t, err, ErrConflict, "device in maintenance")
	assert.Equal(t, models.BorrowApproved, f.store.borrow(second.ID).Status)
}

func TestCreateReturn_DamagedNeedsNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.activeBorrow(t, alice, "2024-01-01", "2024-01-10")

	_, err := f.svc.CreateReturn(ctx, CreateReturn{BorrowRequestID: b.ID, Condition: models.ConditionDamaged, Notes: "  ", Actor: alice})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, models.BorrowActive, f.store.borrow(b.ID).Status)

	_, err = f.svc.CreateReturn(ctx, CreateReturn{BorrowRequestID: b.ID, Condition: models.ConditionDamaged, Notes: "battery swollen", Actor: alice})
	require.NoError(t, err)
	assert.Equal(t, models.DeviceMaintenance, f.store.device("D").Status)
}

func TestCreateReturn_Exclusivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.activeBorrow(t, alice, "2024-01-01", "2024-01-10")

	_, err := f.svc.CreateReturn(ctx, CreateReturn{BorrowRequestID: b.ID, Condition: models.ConditionGood, Actor: alice})
	require.NoError(t, err)

	_, err = f.svc.CreateReturn(ctx, CreateReturn{BorrowRequestID: b.ID, Condition: models.ConditionFair, Actor: admin})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateReturn_Preconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.borrow(t, alice, "2024-01-01", "2024-01-10")
	_, err := f.svc.CreateReturn(ctx, CreateReturn{BorrowRequestID: pending.ID, Condition: models.ConditionGood, Actor: alice})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	f.setStatus(t, pending.ID, models.BorrowApproved)
	f.setStatus(t, pending.ID, models.BorrowActive)

	_, err = f.svc.CreateReturn(ctx, CreateReturn{BorrowRequestID: pending.ID, Condition: models.ConditionGood, Actor: bob})
	assert.ErrorIs(t, err, ErrPermission)

	_, err = f.svc.CreateReturn(ctx, CreateReturn{BorrowRequestID: pending.ID, Condition: "broken", Actor: alice})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateReturn(ctx, CreateReturn{BorrowRequestID: pending.ID, Condition: models.ConditionGood, Actor: admin})
	assert.NoError(t, err, "admins can record returns for anyone")
}

func TestCreateReturn_ClosesPendingRenewals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.activeBorrow(t, alice, "2024-01-01", "2024-01-10")

	rn, err := f.svc.CreateRenewal(ctx, CreateRenewal{BorrowRequestID: b.ID, RequestedEnd: day("2024-01-15"), Reason: "more testing", Actor: alice})
	require.NoError(t, err)

	_, err = f.svc.CreateReturn(ctx, CreateReturn{BorrowRequestID: b.ID, Condition: models.ConditionGood, Actor: alice})
	require.NoError(t, err)

	got := f.store.renewal(rn.ID)
	assert.Equal(t, models.RenewalRejected, got.Status)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, alice.ID, *got.ReviewedBy)

	f.svc.Close()
	var rejected []Event
	f.rec.mu.Lock()
	for _, ev := range f.rec.events {
		if ev.Type == EventRenewalRejected {
			rejected = append(rejected, ev)
		}
	}
	f.rec.mu.Unlock()
	require.Len(t, rejected, 1)
	assert.Equal(t, rn.ID, rejected[0].RelatedRequestID)
	assert.Equal(t, []string{alice.ID}, rejected[0].TargetUserIDs)
	assert.False(t, rejected[0].TargetAdmins)
}

func TestUpdateReturnCondition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.activeBorrow(t, alice, "2024-01-01", "2024-01-10")

	r, err := f.svc.CreateReturn(ctx, CreateReturn{BorrowRequestID: b.ID, Condition: models.ConditionGood, Actor: alice})
	require.NoError(t, err)

	_, err = f.svc.UpdateReturnCondition(ctx, UpdateReturnCondition{ReturnRequestID: r.ID, Condition: models.ConditionDamaged, Actor: alice})
	assert.ErrorIs(t, err, ErrPermission)

	_, err = f.svc.UpdateReturnCondition(ctx, UpdateReturnCondition{ReturnRequestID: r.ID, Condition: models.ConditionDamaged, Actor: admin})
	assert.ErrorIs(t, err, ErrValidation, "damaged without notes")

	notes := "dented corner"
	got, err := f.svc.UpdateReturnCondition(ctx, UpdateReturnCondition{ReturnRequestID: r.ID, Condition: models.ConditionDamaged, Notes: &notes, Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, models.ConditionDamaged, got.Condition)
	assert.Equal(t, models.DeviceMaintenance, f.store.device("D").Status)
	assert.Equal(t, models.BorrowReturned, f.store.borrow(b.ID).Status)

	_, err = f.svc.UpdateReturnCondition(ctx, UpdateReturnCondition{ReturnRequestID: r.ID, Condition: models.ConditionGood, Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, models.DeviceAvailable, f.store.device("D").Status)
}

func TestCreateRenewal_Preconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.borrow(t, alice, "2024-01-01", "2024-01-10")
	_, err := f.svc.CreateRenewal(ctx, CreateRenewal{BorrowRequestID: pending.ID, RequestedEnd: day("2024-01-12"), Reason: "r", Actor: alice})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	f.setStatus(t, pending.ID, models.BorrowApproved)
	f.setStatus(t, pending.ID, models.BorrowActive)

	_, err = f.svc.CreateRenewal(ctx, CreateRenewal{BorrowRequestID: pending.ID, RequestedEnd: day("2024-01-10"), Reason: "r", Actor: alice})
	assert.ErrorIs(t, err, ErrValidation, "must extend past the current end")

	_, err = f.svc.CreateRenewal(ctx, CreateRenewal{BorrowRequestID: pending.ID, RequestedEnd: day("2024-01-12"), Actor: alice})
	assert.ErrorIs(t, err, ErrValidation, "reason is required")

	_, err = f.svc.CreateRenewal(ctx, CreateRenewal{BorrowRequestID: pending.ID, RequestedEnd: day("2024-01-12"), Reason: "r", Actor: bob})
	assert.ErrorIs(t, err, ErrPermission)

	_, err = f.svc.CreateRenewal(ctx, CreateRenewal{BorrowRequestID: pending.ID, RequestedEnd: day("2024-01-12"), Reason: "r", Actor: alice})
	require.NoError(t, err)

	_, err = f.svc.CreateRenewal(ctx, CreateRenewal{BorrowRequestID: pending.ID, RequestedEnd: day("2024-01-14"), Reason: "r", Actor: alice})
	assert.ErrorIs(t, err, ErrConflict, "one pending renewal per borrow")
}

func TestCreateRenewal_ConflictsWithNextLoan(t *testing.T) {
	f := newFixture(t)
	b := f.activeBorrow(t, alice, "2024-01-01", "2024-01-10")
	f.borrow(t, bob, "2024-01-10", "2024-01-20")

	_, err := f.svc.CreateRenewal(context.Background(), CreateRenewal{BorrowRequestID: b.ID, RequestedEnd: day("2024-01-12"), Reason: "r", Actor: alice})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSetRenewalStatus_ApproveExtendsBorrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.activeBorrow(t, alice, "2024-01-01", "2024-01-10")

	rn, err := f.svc.CreateRenewal(ctx, CreateRenewal{BorrowRequestID: b.ID, RequestedEnd: day("2024-01-15"), Reason: "r", Actor: alice})
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-10"), rn.CurrentEndDate)

	_, err = f.svc.SetRenewalStatus(ctx, SetRenewalStatus{RenewalID: rn.ID, Target: models.RenewalApproved, Actor: alice})
	assert.ErrorIs(t, err, ErrPermission)

	got, err := f.svc.SetRenewalStatus(ctx, SetRenewalStatus{RenewalID: rn.ID, Target: models.RenewalApproved, Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, models.RenewalApproved, got.Status)
	assert.Equal(t, day("2024-01-15"), f.store.borrow(b.ID).EndDate)

	_, err = f.svc.SetRenewalStatus(ctx, SetRenewalStatus{RenewalID: rn.ID, Target: models.RenewalRejected, Actor: admin})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSetRenewalStatus_RevalidatesOnApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.activeBorrow(t, alice, "2024-01-01", "2024-01-10")

	rn, err := f.svc.CreateRenewal(ctx, CreateRenewal{BorrowRequestID: b.ID, RequestedEnd: day("2024-01-15"), Reason: "r", Actor: alice})
	require.NoError(t, err)

	// Filed after the renewal; it does not overlap the borrow's current interval.
	f.borrow(t, bob, "2024-01-12", "2024-01-20")

	_, err = f.svc.SetRenewalStatus(ctx, SetRenewalStatus{RenewalID: rn.ID, Target: models.RenewalApproved, Actor: admin})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, day("2024-01-10"), f.store.borrow(b.ID).EndDate)
	assert.Equal(t, models.RenewalPending, f.store.renewal(rn.ID).Status)

	_, err = f.svc.SetRenewalStatus(ctx, SetRenewalStatus{RenewalID: rn.ID, Target: models.RenewalRejected, Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-10"), f.store.borrow(b.ID).EndDate)
}

func TestService_TransientFailuresAreRetried(t *testing.T) {
	f := newFixture(t)
	f.store.failures = 2

	b := f.borrow(t, alice, "2024-01-01", "2024-01-10")
	assert.Equal(t, models.BorrowPending, f.store.borrow(b.ID).Status)
}

func TestService_HookFailuresDoNotFailOperation(t *testing.T) {
	store := newMemStore()
	store.addDevice("D", "Pixel 8", models.DeviceAvailable)
	coord, err := NewCoordinator(store, nil)
	require.NoError(t, err)

	failing := NotifierFunc(func(context.Context, Event) error { return errors.New("broker down") })
	svc := NewService(coord, WithNotifier(failing), WithClock(func() time.Time { return day("2024-01-01") }))

	b, err := svc.CreateBorrow(context.Background(), CreateBorrow{DeviceID: "D", Start: day("2024-01-01"), End: day("2024-01-02"), Actor: alice})
	require.NoError(t, err)
	svc.Close()
	assert.Equal(t, models.BorrowPending, store.borrow(b.ID).Status)
}

func TestService_AuditsEveryMutation(t *testing.T) {
	f := newFixture(t)
	b := f.activeBorrow(t, alice, "2024-01-01", "2024-01-10")
	f.svc.Close()

	f.rec.mu.Lock()
	defer f.rec.mu.Unlock()
	var actions []string
	for _, a := range f.rec.audits {
		actions = append(actions, a.ObjectType+"/"+a.Action)
		if a.ObjectType == objBorrow {
			assert.Equal(t, b.ID, a.ObjectID)
		}
	}
	assert.ElementsMatch(t, []string{
		"borrow_request/create",
		"borrow_request/status:approved",
		"borrow_request/status:active",
		"device/status:borrowed",
	}, actions)
}

func TestReads_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine := f.activeBorrow(t, alice, "2024-01-01", "2024-01-05")
	f.borrow(t, bob, "2024-01-06", "2024-01-09")

	_, err := f.svc.GetBorrow(ctx, mine.ID, bob)
	assert.ErrorIs(t, err, ErrPermission)

	detail, err := f.svc.GetBorrow(ctx, mine.ID, alice)
	require.NoError(t, err)
	assert.Nil(t, detail.Return)

	_, err = f.svc.GetReturnByBorrow(ctx, mine.ID, alice)
	assert.ErrorIs(t, err, ErrNotFound)

	page, err := f.svc.ListBorrows(ctx, BorrowFilter{}, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, mine.ID, page.Items[0].ID)

	page, err = f.svc.ListBorrows(ctx, BorrowFilter{UserID: alice.ID}, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total, "non-admins only ever see their own")
	assert.Equal(t, bob.ID, page.Items[0].UserID)

	page, err = f.svc.ListBorrows(ctx, BorrowFilter{Statuses: []models.BorrowStatus{models.BorrowActive}}, admin)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	_, err = f.svc.ListBorrows(ctx, BorrowFilter{From: day("2024-01-05"), To: day("2024-01-05")}, admin)
	assert.ErrorIs(t, err, ErrValidation)

	rns, err := f.svc.ListRenewals(ctx, mine.ID, admin)
	require.NoError(t, err)
	assert.Empty(t, rns)
}

func TestService_CloseWhileOperationsRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = f.svc.CreateBorrow(ctx, CreateBorrow{
				DeviceID: "D",
				Start:    day("2024-01-02").AddDate(0, 0, 2*i),
				End:      day("2024-01-03").AddDate(0, 0, 2*i),
				Actor:    alice,
			})
		}(i)
	}
	f.svc.Close()
	wg.Wait()
	f.svc.Close()

	// Hooks dispatched after Close run inline, so nothing is lost.
	assert.Len(t, f.rec.eventTypes(), 8)
}
