package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultBatchLimit bounds how many operations one atomic batch accepts.
const DefaultBatchLimit = 500

// Options tune the in-memory store.
type Options struct {
	// BatchLimit overrides DefaultBatchLimit when positive.
	BatchLimit int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Memory is the in-memory realtime store. One instance is shared by every
// client role in the process; all cross-role coordination goes through it.
// Since it never leaves the process, a dropped connection cannot happen and
// subscriptions stay live until unsubscribed, which satisfies the
// resubscription requirement of the Store contract trivially.
type Memory struct {
	mu         sync.Mutex
	docs       map[string]*memDoc
	subs       map[int]*subscription
	nextSubID  int
	seq        int64
	batchLimit int
	now        func() time.Time
	lastStamp  time.Time
}

type memDoc struct {
	fields Fields
	seq    int64 // commit sequence, tie-break for equal order-by values
}

// NewMemory builds an empty in-memory store.
func NewMemory(opts Options) *Memory {
	limit := opts.BatchLimit
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Memory{
		docs:       make(map[string]*memDoc),
		subs:       make(map[int]*subscription),
		batchLimit: limit,
		now:        now,
	}
}

type serverTimestamp struct{}

// ServerTimestamp returns the commit-time sentinel.
func (m *Memory) ServerTimestamp() any { return serverTimestamp{} }

// BatchLimit reports the atomic operation bound enforced at commit.
func (m *Memory) BatchLimit() int { return m.batchLimit }

// Put creates or replaces the document at path.
func (m *Memory) Put(ctx context.Context, path string, fields Fields) error {
	if err := ctx.Err(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := validateDocPath(path); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	m.mu.Lock()
	stamp := m.commitStamp()
	m.applyPut(path, fields, stamp)
	m.notifyLocked(collectionOf(path))
	m.mu.Unlock()
	return nil
}

// Update merges fields into an existing document.
func (m *Memory) Update(ctx context.Context, path string, fields Fields) error {
	if err := ctx.Err(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := validateDocPath(path); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[path]; !ok {
		return ErrNotFound
	}
	stamp := m.commitStamp()
	m.applyUpdate(path, fields, stamp)
	m.notifyLocked(collectionOf(path))
	return nil
}

// Delete removes the document at path.
func (m *Memory) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[path]; !ok {
		return ErrNotFound
	}
	m.applyDelete(path)
	m.notifyLocked(collectionOf(path))
	return nil
}

// Get reads one document.
func (m *Memory) Get(ctx context.Context, path string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, &ReadError{Path: path, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[path]
	if !ok {
		return Document{}, ErrNotFound
	}
	return snapshotDoc(path, doc), nil
}

// Query reads a collection once, ordered per opts.
func (m *Memory) Query(ctx context.Context, collection string, opts QueryOptions) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ReadError{Path: collection, Err: err}
	}
	if collection == "" {
		return nil, &ReadError{Path: collection, Err: fmt.Errorf("empty collection path")}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryLocked(collection, opts), nil
}

// Subscribe opens a live query. The callback runs on a dedicated goroutine,
// never under the store lock; it receives the current snapshot immediately
// and a fresh one after every commit touching the collection. A consumer
// slower than the commit rate sees coalesced snapshots, always ending with
// the latest.
func (m *Memory) Subscribe(collection string, opts QueryOptions, fn SnapshotFunc) (Unsubscribe, error) {
	if collection == "" || fn == nil {
		return nil, &SubscriptionError{Collection: collection, Err: fmt.Errorf("collection and callback are required")}
	}

	sub := &subscription{
		collection: collection,
		opts:       opts,
		ch:         make(chan []Document, 1),
		stop:       make(chan struct{}),
	}

	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = sub
	sub.push(m.queryLocked(collection, opts))
	m.mu.Unlock()

	go func() {
		for {
			select {
			case docs := <-sub.ch:
				fn(docs)
			case <-sub.stop:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(sub.stop)
		})
	}, nil
}

// Batch starts staging an atomic multi-document write.
func (m *Memory) Batch() Batch {
	return &memBatch{store: m}
}

type subscription struct {
	collection string
	opts       QueryOptions
	ch         chan []Document
	stop       chan struct{}
}

// push hands a snapshot to the delivery goroutine, displacing any undelivered
// older one. Never blocks, so it is safe under the store lock.
func (s *subscription) push(docs []Document) {
	for {
		select {
		case s.ch <- docs:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

type batchOp struct {
	kind   string // "put", "update", "delete"
	path   string
	fields Fields
}

type memBatch struct {
	store *Memory
	ops   []batchOp
}

func (b *memBatch) Put(path string, fields Fields) {
	b.ops = append(b.ops, batchOp{kind: "put", path: path, fields: fields})
}

func (b *memBatch) Update(path string, fields Fields) {
	b.ops = append(b.ops, batchOp{kind: "update", path: path, fields: fields})
}

func (b *memBatch) Delete(path string) {
	b.ops = append(b.ops, batchOp{kind: "delete", path: path})
}

// Commit applies every staged operation atomically, or none when validation
// fails. All server timestamps in one batch resolve to the same instant.
func (b *memBatch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &WriteError{Path: "batch", Err: err}
	}
	if len(b.ops) == 0 {
		return nil
	}
	if len(b.ops) > b.store.batchLimit {
		return ErrBatchLimit
	}

	m := b.store
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate everything before touching state.
	for _, op := range b.ops {
		switch op.kind {
		case "put":
			if err := validateDocPath(op.path); err != nil {
				return &WriteError{Path: op.path, Err: err}
			}
		case "update", "delete":
			if _, ok := m.docs[op.path]; !ok {
				return ErrNotFound
			}
		}
	}

	stamp := m.commitStamp()
	touched := make(map[string]struct{})
	for _, op := range b.ops {
		switch op.kind {
		case "put":
			m.applyPut(op.path, op.fields, stamp)
		case "update":
			m.applyUpdate(op.path, op.fields, stamp)
		case "delete":
			m.applyDelete(op.path)
		}
		touched[collectionOf(op.path)] = struct{}{}
	}
	for collection := range touched {
		m.notifyLocked(collection)
	}
	return nil
}

// commitStamp returns a commit time strictly after every earlier one, so the
// createdAt ordering of back-to-back writes matches commit order even when
// the wall clock does not advance between them. Caller holds the lock.
func (m *Memory) commitStamp() time.Time {
	ts := m.now().UTC()
	if !ts.After(m.lastStamp) {
		ts = m.lastStamp.Add(time.Microsecond)
	}
	m.lastStamp = ts
	return ts
}

func (m *Memory) applyPut(path string, fields Fields, stamp time.Time) {
	m.seq++
	m.docs[path] = &memDoc{fields: resolveFields(fields, stamp), seq: m.seq}
}

func (m *Memory) applyUpdate(path string, fields Fields, stamp time.Time) {
	m.seq++
	doc := m.docs[path]
	merged := make(Fields, len(doc.fields)+len(fields))
	for k, v := range doc.fields {
		merged[k] = v
	}
	for k, v := range resolveFields(fields, stamp) {
		merged[k] = v
	}
	doc.fields = merged
	doc.seq = m.seq
}

func (m *Memory) applyDelete(path string) {
	m.seq++
	delete(m.docs, path)
}

func (m *Memory) notifyLocked(collection string) {
	for _, sub := range m.subs {
		if sub.collection == collection {
			sub.push(m.queryLocked(sub.collection, sub.opts))
		}
	}
}

func (m *Memory) queryLocked(collection string, opts QueryOptions) []Document {
	prefix := collection + "/"
	docs := make([]Document, 0, 8)
	for path, doc := range m.docs {
		if strings.HasPrefix(path, prefix) && collectionOf(path) == collection {
			docs = append(docs, snapshotDoc(path, doc))
		}
	}

	seqs := make(map[string]int64, len(docs))
	for _, d := range docs {
		seqs[d.Path] = m.docs[d.Path].seq
	}
	sort.Slice(docs, func(i, j int) bool {
		c := compareDocs(docs[i], docs[j], opts.OrderBy, seqs)
		if opts.Desc {
			return c > 0
		}
		return c < 0
	})

	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return docs
}

func compareDocs(a, b Document, orderBy string, seqs map[string]int64) int {
	if orderBy != "" && orderBy != ByDocumentID {
		if c := compareValues(a.Fields[orderBy], b.Fields[orderBy]); c != 0 {
			return c
		}
		// Equal order-by values fall back to commit order, which is
		// deterministic and stable across subscribers.
		return compareInt64(seqs[a.Path], seqs[b.Path])
	}
	return strings.Compare(a.ID, b.ID)
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return -1
		}
		return av.Compare(bv)
	case string:
		bv, ok := b.(string)
		if !ok {
			return -1
		}
		return strings.Compare(av, bv)
	case int:
		if bv, ok := b.(int); ok {
			return compareInt64(int64(av), int64(bv))
		}
		return -1
	case int64:
		if bv, ok := b.(int64); ok {
			return compareInt64(av, bv)
		}
		return -1
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return -1
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case nil:
		if b == nil {
			return 0
		}
		return -1
	}
	if b == nil {
		return 1
	}
	return 0
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func resolveFields(fields Fields, stamp time.Time) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			out[k] = stamp
		} else {
			out[k] = v
		}
	}
	return out
}

func snapshotDoc(path string, doc *memDoc) Document {
	fields := make(Fields, len(doc.fields))
	for k, v := range doc.fields {
		fields[k] = v
	}
	return Document{ID: idOf(path), Path: path, Fields: fields}
}

// validateDocPath requires collection/id pairs: an even, positive segment
// count with no empty segments.
func validateDocPath(path string) error {
	segments := strings.Split(path, "/")
	if len(segments) < 2 || len(segments)%2 != 0 {
		return fmt.Errorf("invalid document path %q", path)
	}
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("invalid document path %q", path)
		}
	}
	return nil
}

func collectionOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

func idOf(path string) string {
	idx := strings.LastIndex(path, "/")
	return path[idx+1:]
}
