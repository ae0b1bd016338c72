package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func newTestStore(mock *simpleMock, now *time.Time) *Store {
	s := NewStore(mock, "idempotency-table", 48*time.Hour)
	s.nowFunc = func() time.Time { return *now }
	return s
}

func TestBegin_Get_MarkDone_MarkFailed(t *testing.T) {
	mock := newSimpleMock()
	now := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	s := newTestStore(mock, &now)

	ctx := context.Background()
	key := "test-key-1"
	fp := Fingerprint("42", "delete")

	created, err := s.Begin(ctx, key, fp)
	if err != nil {
		t.Fatalf("Begin error: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true")
	}

	// second claim of a live IN_PROGRESS key must fail
	created2, err := s.Begin(ctx, key, fp)
	if err != nil {
		t.Fatalf("second Begin error: %v", err)
	}
	if created2 {
		t.Fatalf("expected created=false on duplicate begin")
	}

	rec, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected record, got nil")
	}
	if rec.Status != StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", rec.Status)
	}
	if rec.Fingerprint != fp {
		t.Fatalf("fingerprint mismatch")
	}
	if rec.ExpiresAt != now.Add(48*time.Hour).Unix() {
		t.Fatalf("unexpected expiry %d", rec.ExpiresAt)
	}

	if err := s.MarkDone(ctx, key, "{\"ok\":true}", 200); err != nil {
		t.Fatalf("MarkDone error: %v", err)
	}
	item := mock.table[key]
	if st, ok := item["status"].(*types.AttributeValueMemberS); !ok || st.Value != StatusDone {
		t.Fatalf("status not updated to DONE, got %+v", item["status"])
	}
	rec, err = s.Get(ctx, key)
	if err != nil || rec == nil {
		t.Fatalf("Get after done: %v %v", rec, err)
	}
	if rec.ResponseBody != "{\"ok\":true}" || rec.ResponseStatus != 200 {
		t.Fatalf("stored response not readable: %+v", rec)
	}

	// a DONE key cannot be claimed again
	if created, _ := s.Begin(ctx, key, fp); created {
		t.Fatalf("DONE key was claimed again")
	}

	if err := s.MarkFailed(ctx, key, "failed-reason"); err != nil {
		t.Fatalf("MarkFailed error: %v", err)
	}
	item2 := mock.table[key]
	if n, ok := item2["note"].(*types.AttributeValueMemberS); !ok || n.Value != "failed-reason" {
		t.Fatalf("note not set, got %+v", item2["note"])
	}

	// FAILED keys are released for retry
	created3, err := s.Begin(ctx, key, fp)
	if err != nil || !created3 {
		t.Fatalf("expected FAILED key to be claimable, got %v %v", created3, err)
	}
}

func TestBegin_ExpiredKeyIsReclaimed(t *testing.T) {
	mock := newSimpleMock()
	now := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	s := newTestStore(mock, &now)
	ctx := context.Background()

	if ok, err := s.Begin(ctx, "k", "fp"); err != nil || !ok {
		t.Fatalf("first begin: %v %v", ok, err)
	}
	now = now.Add(49 * time.Hour)

	rec, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec != nil {
		t.Fatalf("expired record should read as absent")
	}
	if ok, err := s.Begin(ctx, "k", "fp"); err != nil || !ok {
		t.Fatalf("expired key should be claimable: %v %v", ok, err)
	}
}

func TestBegin_ClientError(t *testing.T) {
	mock := newSimpleMock()
	mock.failWith = errors.New("throttled")
	now := time.Now()
	s := newTestStore(mock, &now)

	if _, err := s.Begin(context.Background(), "k", "fp"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestGet_Missing(t *testing.T) {
	now := time.Now()
	s := newTestStore(newSimpleMock(), &now)
	rec, err := s.Get(context.Background(), "nope")
	if err != nil || rec != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", rec, err)
	}
}

func TestFingerprint(t *testing.T) {
	if Fingerprint("1", "delete") != Fingerprint("1", "delete") {
		t.Fatalf("fingerprint not deterministic")
	}
	if Fingerprint("1", "delete") == Fingerprint("1", "complete") {
		t.Fatalf("different actions share a fingerprint")
	}
	if Fingerprint("12", "3") == Fingerprint("1", "23") {
		t.Fatalf("fingerprint fields are ambiguous")
	}
}

func TestAttributevalueMarshal_Unmarshal(t *testing.T) {
	rec := Record{
		Key:         "k1",
		Status:      StatusInProgress,
		Fingerprint: "abc",
		CreatedAt:   time.Now().Round(time.Second),
		UpdatedAt:   time.Now().Round(time.Second),
		ExpiresAt:   time.Now().Add(24 * time.Hour).Unix(),
	}
	m, err := attributevalue.MarshalMap(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, ok := m["idempotency_key"]; !ok {
		t.Fatalf("primary key attribute missing")
	}
	var out Record
	if err := attributevalue.UnmarshalMap(m, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Key != rec.Key || out.Fingerprint != rec.Fingerprint {
		t.Fatalf("unmarshal mismatch")
	}
}
