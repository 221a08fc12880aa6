package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/pliu/quickchat/internal/models"
	"github.com/pliu/quickchat/internal/store/sqlstore"
)

type recordingRouter struct {
	delivered []*models.Message
	online    bool
}

func (r *recordingRouter) Deliver(msg *models.Message) bool {
	if !r.online {
		return false
	}
	r.delivered = append(r.delivered, msg)
	return true
}

type fakeUploader struct {
	url string
	err error
}

func (u *fakeUploader) Upload(ctx context.Context, dataURI string) (string, error) {
	return u.url, u.err
}

func newTestService(t *testing.T) (*Service, *recordingRouter, int64, int64) {
	t.Helper()
	st, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	ctx := context.Background()
	a := &models.User{Email: "a@example.com", FullName: "A", Password: "hash"}
	b := &models.User{Email: "b@example.com", FullName: "B", Password: "hash"}
	st.CreateUser(ctx, a)
	st.CreateUser(ctx, b)

	router := &recordingRouter{}
	return New(st, router, &fakeUploader{url: "/uploads/test.png"}), router, a.ID, b.ID
}

func TestSendMessageAppearsInHistory(t *testing.T) {
	svc, _, a, b := newTestService(t)
	ctx := context.Background()

	sent, err := svc.SendMessage(ctx, a, b, "hi", "")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	messages, err := svc.FetchHistory(ctx, a, b)
	if err != nil {
		t.Fatalf("FetchHistory failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(messages))
	}
	got := messages[0]
	if got.ID != sent.ID || got.SenderID != a || got.ReceiverID != b || got.Text != "hi" {
		t.Errorf("Unexpected message: %+v", got)
	}
	if got.Seen {
		t.Error("Expected the fresh message to be unseen")
	}
	if got.CreatedAt.IsZero() {
		t.Error("Expected a store-assigned timestamp")
	}
}

func TestSendMessageDeliversToOnlineReceiver(t *testing.T) {
	svc, router, a, b := newTestService(t)
	router.online = true

	sent, err := svc.SendMessage(context.Background(), a, b, "hi", "")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(router.delivered) != 1 {
		t.Fatalf("Expected exactly one delivery, got %d", len(router.delivered))
	}
	if router.delivered[0].ID != sent.ID {
		t.Error("Expected the saved message to be the delivered payload")
	}
}

func TestSendMessageOfflineReceiverStillPersists(t *testing.T) {
	svc, router, a, b := newTestService(t)
	router.online = false
	ctx := context.Background()

	if _, err := svc.SendMessage(ctx, a, b, "hi", ""); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(router.delivered) != 0 {
		t.Error("Expected no delivery to an offline receiver")
	}

	// The receiver's sidebar shows the message as unseen
	_, unseen, err := svc.ListPartners(ctx, b)
	if err != nil {
		t.Fatalf("ListPartners failed: %v", err)
	}
	if unseen[a] != 1 {
		t.Errorf("Expected 1 unseen message from %d, got %d", a, unseen[a])
	}
}

func TestSendMessageRejectsEmpty(t *testing.T) {
	svc, _, a, b := newTestService(t)

	_, err := svc.SendMessage(context.Background(), a, b, "", "")
	if !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Expected ErrEmptyMessage, got %v", err)
	}

	messages, _ := svc.FetchHistory(context.Background(), a, b)
	if len(messages) != 0 {
		t.Error("Expected nothing persisted for an empty send")
	}
}

func TestSendMessageUploadFailureAbortsBeforeWrite(t *testing.T) {
	svc, _, a, b := newTestService(t)
	svc.Uploader = &fakeUploader{err: errors.New("content store down")}
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, a, b, "", "data:image/png;base64,xxxx")
	if err == nil {
		t.Fatal("Expected upload failure to surface")
	}

	messages, _ := svc.FetchHistory(ctx, a, b)
	if len(messages) != 0 {
		t.Error("Expected no store write after a failed upload")
	}
}

func TestSendMessageResolvesImageURL(t *testing.T) {
	svc, _, a, b := newTestService(t)

	sent, err := svc.SendMessage(context.Background(), a, b, "", "data:image/png;base64,xxxx")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if sent.Image != "/uploads/test.png" {
		t.Errorf("Expected resolved image URL, got %q", sent.Image)
	}
}

func TestFetchHistoryClearsUnseenBacklog(t *testing.T) {
	svc, _, a, b := newTestService(t)
	ctx := context.Background()

	svc.SendMessage(ctx, a, b, "one", "")
	svc.SendMessage(ctx, a, b, "two", "")

	// B opens the conversation; returned messages still show pre-mark state
	messages, err := svc.FetchHistory(ctx, b, a)
	if err != nil {
		t.Fatalf("FetchHistory failed: %v", err)
	}
	for _, m := range messages {
		if m.Seen {
			t.Error("Expected returned history to reflect state before the mark")
		}
	}

	// A message sent after the fetch is not retroactively marked
	svc.SendMessage(ctx, a, b, "three", "")

	_, unseen, err := svc.ListPartners(ctx, b)
	if err != nil {
		t.Fatalf("ListPartners failed: %v", err)
	}
	if unseen[a] != 1 {
		t.Errorf("Expected only the post-fetch message unseen, got %d", unseen[a])
	}
}

func TestListPartnersExcludesSelfAndOmitsZeroCounts(t *testing.T) {
	svc, _, a, b := newTestService(t)
	ctx := context.Background()

	users, unseen, err := svc.ListPartners(ctx, a)
	if err != nil {
		t.Fatalf("ListPartners failed: %v", err)
	}
	if len(users) != 1 || users[0].ID != b {
		t.Errorf("Expected only the other user, got %+v", users)
	}
	if len(unseen) != 0 {
		t.Errorf("Expected no unseen entries, got %v", unseen)
	}
}

func TestMarkSeenIdempotent(t *testing.T) {
	svc, _, a, b := newTestService(t)
	ctx := context.Background()

	sent, _ := svc.SendMessage(ctx, a, b, "hi", "")

	if err := svc.MarkSeen(ctx, sent.ID); err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}
	if err := svc.MarkSeen(ctx, sent.ID); err != nil {
		t.Errorf("Second MarkSeen failed: %v", err)
	}
	if err := svc.MarkSeen(ctx, 424242); err != nil {
		t.Errorf("MarkSeen on a missing id failed: %v", err)
	}

	messages, _ := svc.FetchHistory(ctx, a, b)
	if !messages[0].Seen {
		t.Error("Expected message to be seen")
	}
}
