package reservation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/pearleseed/device-hub-sub001/models"
)

var errFlaky = errors.New("flaky storage")

// memStore is an in-memory TxRunner. Writes are staged per transaction and
// applied on commit; LockDevice holds a per-device mutex until the
// transaction ends, which mirrors SELECT ... FOR UPDATE.
type memStore struct {
	mu       sync.Mutex
	devices  map[string]models.Device
	borrows  map[string]models.BorrowRequest
	returns  map[string]models.ReturnRequest
	renewals map[string]models.RenewalRequest

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// failures makes the next n RunInTx calls fail with errFlaky.
	failures int
	runs     int
}

func newMemStore() *memStore {
	return &memStore{
		devices:  map[string]models.Device{},
		borrows:  map[string]models.BorrowRequest{},
		returns:  map[string]models.ReturnRequest{},
		renewals: map[string]models.RenewalRequest{},
		locks:    map[string]*sync.Mutex{},
	}
}

func (m *memStore) addDevice(id, name string, status models.DeviceStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[id] = models.Device{ID: id, Serial: "SN-" + id, Name: name, Status: status}
}

func (m *memStore) device(id string) models.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.devices[id]
}

func (m *memStore) borrow(id string) models.BorrowRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.borrows[id]
}

func (m *memStore) renewal(id string) models.RenewalRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renewals[id]
}

func (m *memStore) setDevice(id string, status models.DeviceStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.devices[id]
	d.Status = status
	m.devices[id] = d
}

func (m *memStore) deviceLock(id string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

func (m *memStore) IsTransient(err error) bool { return errors.Is(err, errFlaky) }

func (m *memStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	m.runs++
	if m.failures > 0 {
		m.failures--
		m.mu.Unlock()
		return errFlaky
	}
	m.mu.Unlock()

	tx := &memTx{
		m:        m,
		held:     map[string]*sync.Mutex{},
		devices:  map[string]models.Device{},
		borrows:  map[string]models.BorrowRequest{},
		returns:  map[string]models.ReturnRequest{},
		renewals: map[string]models.RenewalRequest{},
	}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	m    *memStore
	held map[string]*sync.Mutex

	devices  map[string]models.Device
	borrows  map[string]models.BorrowRequest
	returns  map[string]models.ReturnRequest
	renewals map[string]models.RenewalRequest
}

func (t *memTx) release() {
	for _, l := range t.held {
		l.Unlock()
	}
}

func (t *memTx) commit() {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for k, v := range t.devices {
		t.m.devices[k] = v
	}
	for k, v := range t.borrows {
		t.m.borrows[k] = v
	}
	for k, v := range t.returns {
		t.m.returns[k] = v
	}
	for k, v := range t.renewals {
		t.m.renewals[k] = v
	}
}

func (t *memTx) allBorrows() []models.BorrowRequest {
	t.m.mu.Lock()
	merged := make(map[string]models.BorrowRequest, len(t.m.borrows))
	for k, v := range t.m.borrows {
		merged[k] = v
	}
	t.m.mu.Unlock()
	for k, v := range t.borrows {
		merged[k] = v
	}
	out := make([]models.BorrowRequest, 0, len(merged))
	for _, v := range merged {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

func (t *memTx) allReturns() []models.ReturnRequest {
	t.m.mu.Lock()
	merged := make(map[string]models.ReturnRequest, len(t.m.returns))
	for k, v := range t.m.returns {
		merged[k] = v
	}
	t.m.mu.Unlock()
	for k, v := range t.returns {
		merged[k] = v
	}
	out := make([]models.ReturnRequest, 0, len(merged))
	for _, v := range merged {
		out = append(out, v)
	}
	return out
}

func (t *memTx) allRenewals() []models.RenewalRequest {
	t.m.mu.Lock()
	merged := make(map[string]models.RenewalRequest, len(t.m.renewals))
	for k, v := range t.m.renewals {
		merged[k] = v
	}
	t.m.mu.Unlock()
	for k, v := range t.renewals {
		merged[k] = v
	}
	out := make([]models.RenewalRequest, 0, len(merged))
	for _, v := range merged {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (t *memTx) LockDevice(_ context.Context, id string) (*models.Device, error) {
	if _, ok := t.held[id]; !ok {
		l := t.m.deviceLock(id)
		l.Lock()
		t.held[id] = l
	}
	if d, ok := t.devices[id]; ok {
		return &d, nil
	}
	t.m.mu.Lock()
	d, ok := t.m.devices[id]
	t.m.mu.Unlock()
	if !ok {
		return nil, NotFound("device", id)
	}
	return &d, nil
}

func (t *memTx) SetDeviceStatus(ctx context.Context, id string, status models.DeviceStatus) error {
	d, err := t.LockDevice(ctx, id)
	if err != nil {
		return err
	}
	d.Status = status
	t.devices[id] = *d
	return nil
}

func (t *memTx) HasConflict(_ context.Context, deviceID string, iv Interval, excludeID string) (bool, error) {
	for _, b := range t.allBorrows() {
		if b.DeviceID != deviceID || b.ID == excludeID || !b.Status.Open() {
			continue
		}
		if iv.Overlaps(Interval{Start: b.StartDate, End: b.EndDate}) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) CountActive(_ context.Context, deviceID, excludeID string) (int64, error) {
	var n int64
	for _, b := range t.allBorrows() {
		if b.DeviceID == deviceID && b.ID != excludeID && b.Status == models.BorrowActive {
			n++
		}
	}
	return n, nil
}

func (t *memTx) LatestReturn(_ context.Context, deviceID string) (*models.ReturnRequest, error) {
	var latest *models.ReturnRequest
	for _, r := range t.allReturns() {
		if r.DeviceID != deviceID {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			r := r
			latest = &r
		}
	}
	return latest, nil
}

func (t *memTx) GetBorrow(_ context.Context, id string) (*models.BorrowRequest, error) {
	if b, ok := t.borrows[id]; ok {
		return &b, nil
	}
	t.m.mu.Lock()
	b, ok := t.m.borrows[id]
	t.m.mu.Unlock()
	if !ok {
		return nil, NotFound("borrow request", id)
	}
	return &b, nil
}

func (t *memTx) CreateBorrow(_ context.Context, b *models.BorrowRequest) error {
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	t.borrows[b.ID] = *b
	return nil
}

func (t *memTx) UpdateBorrow(_ context.Context, b *models.BorrowRequest) error {
	b.UpdatedAt = time.Now()
	t.borrows[b.ID] = *b
	return nil
}

func (t *memTx) ListBorrows(_ context.Context, f BorrowFilter) (*BorrowPage, error) {
	page := &BorrowPage{Items: []models.BorrowRequest{}}
	var matched []models.BorrowRequest
	for _, b := range t.allBorrows() {
		if f.DeviceID != "" && b.DeviceID != f.DeviceID {
			continue
		}
		if f.UserID != "" && b.UserID != f.UserID {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, b.Status) {
			continue
		}
		if !f.From.IsZero() && !b.EndDate.After(f.From) {
			continue
		}
		if !f.To.IsZero() && !b.StartDate.Before(f.To) {
			continue
		}
		matched = append(matched, b)
	}
	page.Total = int64(len(matched))
	for i := f.Offset(); i < len(matched) && len(page.Items) < f.Size; i++ {
		page.Items = append(page.Items, matched[i])
	}
	return page, nil
}

func containsStatus(list []models.BorrowStatus, s models.BorrowStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (t *memTx) GetReturn(_ context.Context, id string) (*models.ReturnRequest, error) {
	for _, r := range t.allReturns() {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, NotFound("return request", id)
}

func (t *memTx) FindReturnByBorrow(_ context.Context, borrowID string) (*models.ReturnRequest, error) {
	for _, r := range t.allReturns() {
		if r.BorrowRequestID == borrowID {
			return &r, nil
		}
	}
	return nil, nil
}

func (t *memTx) CreateReturn(ctx context.Context, r *models.ReturnRequest) error {
	if existing, _ := t.FindReturnByBorrow(ctx, r.BorrowRequestID); existing != nil {
		return Conflict("duplicate return for %s", r.BorrowRequestID)
	}
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	t.returns[r.ID] = *r
	return nil
}

func (t *memTx) UpdateReturn(_ context.Context, r *models.ReturnRequest) error {
	r.UpdatedAt = time.Now()
	t.returns[r.ID] = *r
	return nil
}

func (t *memTx) GetRenewal(_ context.Context, id string) (*models.RenewalRequest, error) {
	for _, r := range t.allRenewals() {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, NotFound("renewal request", id)
}

func (t *memTx) CreateRenewal(_ context.Context, r *models.RenewalRequest) error {
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	t.renewals[r.ID] = *r
	return nil
}

func (t *memTx) UpdateRenewal(_ context.Context, r *models.RenewalRequest) error {
	r.UpdatedAt = time.Now()
	t.renewals[r.ID] = *r
	return nil
}

func (t *memTx) ListRenewals(_ context.Context, borrowID string, statuses ...models.RenewalStatus) ([]models.RenewalRequest, error) {
	var out []models.RenewalRequest
	for _, r := range t.allRenewals() {
		if r.BorrowRequestID != borrowID {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, s := range statuses {
				if r.Status == s {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}
