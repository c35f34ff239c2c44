package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"vaultbot/internal/broadcast"
	"vaultbot/internal/config"
	"vaultbot/internal/delivery"
	"vaultbot/internal/linkcode"
	"vaultbot/internal/sched"
	"vaultbot/internal/shortener"
	"vaultbot/internal/store"
	"vaultbot/internal/transport"
	"vaultbot/pkg/logx"
)

const testStorageChannel = -1001000

// ---- fakes ----

type sentMsg struct {
	chatID int64
	text   string
	opt    *transport.SendOptions
}

type fakeAdapter struct {
	mu       sync.Mutex
	username string

	sent        []sentMsg
	photos      []sentMsg
	edits       []sentMsg
	markupEdits []transport.MessageRef
	markups     []transport.InlineKeyboard
	deletes     []transport.MessageRef
	copies      []transport.MessageRef
	approvals   [][2]int64

	member    map[int64]map[int64]transport.MemberStatus
	memberErr error
	invites   map[int64]string
	copyErr   error
	nextID    int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		username: "vault_test_bot",
		member:   map[int64]map[int64]transport.MemberStatus{},
		invites:  map[int64]string{},
	}
}

func (f *fakeAdapter) Start(context.Context, chan<- transport.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                           { return nil }
func (f *fakeAdapter) Username() string                                     { return f.username }

func (f *fakeAdapter) SendText(_ context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{chatID: to.ChatID, text: text, opt: opt})
	f.nextID++
	return transport.MessageRef{ChatID: to.ChatID, MessageID: f.nextID}, nil
}

func (f *fakeAdapter) SendPhoto(_ context.Context, to transport.ChatTarget, _ []byte, caption string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, sentMsg{chatID: to.ChatID, text: caption, opt: opt})
	f.nextID++
	return transport.MessageRef{ChatID: to.ChatID, MessageID: f.nextID}, nil
}

func (f *fakeAdapter) EditText(_ context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sentMsg{chatID: ref.ChatID, text: text, opt: opt})
	return nil
}

func (f *fakeAdapter) EditMarkup(_ context.Context, ref transport.MessageRef, markup transport.InlineKeyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markupEdits = append(f.markupEdits, ref)
	f.markups = append(f.markups, markup)
	return nil
}

func (f *fakeAdapter) Delete(_ context.Context, ref transport.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, ref)
	return nil
}

func (f *fakeAdapter) Copy(_ context.Context, to transport.ChatTarget, src transport.MessageRef, _ *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.copyErr != nil {
		return transport.MessageRef{}, f.copyErr
	}
	f.copies = append(f.copies, src)
	f.nextID++
	return transport.MessageRef{ChatID: to.ChatID, MessageID: f.nextID}, nil
}

func (f *fakeAdapter) MemberOf(_ context.Context, chatID, userID int64) (transport.MemberStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.memberErr != nil {
		return "", f.memberErr
	}
	if byUser, ok := f.member[chatID]; ok {
		if st, ok := byUser[userID]; ok {
			return st, nil
		}
	}
	return transport.StatusMember, nil
}

func (f *fakeAdapter) ChatInfo(_ context.Context, chatID int64) (transport.ChatInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if link, ok := f.invites[chatID]; ok {
		return transport.ChatInfo{ID: chatID, InviteLink: link}, nil
	}
	return transport.ChatInfo{ID: chatID}, nil
}

func (f *fakeAdapter) ApproveJoinRequest(_ context.Context, chatID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approvals = append(f.approvals, [2]int64{chatID, userID})
	return nil
}

func (f *fakeAdapter) AnswerCallback(context.Context, string, string) error { return nil }

func (f *fakeAdapter) lastSent(t *testing.T) sentMsg {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing was sent")
	}
	return f.sent[len(f.sent)-1]
}

type fakeStore struct {
	mu      sync.Mutex
	users   map[int64]*store.User
	files   map[string]store.File
	batches map[string]store.Batch
	nextB   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[int64]*store.User{},
		files:   map[string]store.File{},
		batches: map[string]store.Batch{},
	}
}

func (f *fakeStore) EnsureUser(_ context.Context, id int64, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; ok {
		return false, nil
	}
	f.users[id] = &store.User{ID: id, Name: name, JoinedAt: time.Now()}
	return true, nil
}

func (f *fakeStore) User(_ context.Context, id int64) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return *u, nil
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeStore) SetBanned(_ context.Context, id int64, banned bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.Banned = banned
	} else {
		f.users[id] = &store.User{ID: id, Banned: banned}
	}
	return nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	return nil
}

func (f *fakeStore) SetPremium(_ context.Context, id int64, premium bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.Premium = premium
	} else {
		f.users[id] = &store.User{ID: id, Premium: premium}
	}
	return nil
}

func (f *fakeStore) CountUsers(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), nil
}

func (f *fakeStore) UserIDs(context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int64
	for id := range f.users {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeStore) SaveFile(_ context.Context, file store.File) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[file.Code]; ok {
		return false, nil
	}
	f.files[file.Code] = file
	return true, nil
}

func (f *fakeStore) CountFiles(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files), nil
}

func (f *fakeStore) SearchFiles(_ context.Context, query string) ([]store.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.File
	for _, file := range f.files {
		if strings.Contains(strings.ToLower(file.Name), strings.ToLower(query)) {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateBatch(_ context.Context, firstID, lastID int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextB++
	id := fmt.Sprintf("batch%03d", f.nextB)
	f.batches[id] = store.Batch{ID: id, FirstID: firstID, LastID: lastID, CreatedAt: time.Now()}
	return id, nil
}

func (f *fakeStore) Batch(_ context.Context, id string) (store.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.batches[id]; ok {
		return b, nil
	}
	return store.Batch{}, store.ErrNotFound
}

func (f *fakeStore) PruneBatches(context.Context, time.Time) (int, error) { return 0, nil }
func (f *fakeStore) Close() error                                         { return nil }

// ---- helpers ----

func testConfig() *config.Config {
	return &config.Config{
		Telegram: config.TelegramConfig{
			Token:          "token",
			OwnerID:        1,
			AdminIDs:       []int64{2},
			StorageChannel: testStorageChannel,
		},
	}
}

func newTestBot(t *testing.T, cfg *config.Config, fa *fakeAdapter, fs store.Store, pool *shortener.Pool) *Service {
	t.Helper()
	sc := sched.New(logx.Nop())
	var bc *broadcast.Service
	if fs != nil {
		bc = broadcast.New(broadcast.Config{Rate: 10_000}, fa, audienceShim{fs}, logx.Nop(), nil)
	}
	return New(cfg, Deps{
		Adapter:   fa,
		Store:     fs,
		Shortener: pool,
		Delivery:  delivery.New(fa, sc, testStorageChannel, logx.Nop(), nil),
		Broadcast: bc,
		Sched:     sc,
		Log:       logx.Nop(),
	})
}

// audienceShim narrows a store to the broadcast audience surface.
type audienceShim struct{ st store.Store }

func (a audienceShim) UserIDs(ctx context.Context) ([]int64, error) { return a.st.UserIDs(ctx) }
func (a audienceShim) DeleteUser(ctx context.Context, id int64) error {
	return a.st.DeleteUser(ctx, id)
}

func userMsg(from int64, text string) *transport.Message {
	return &transport.Message{ID: 1, ChatID: from, FromID: from, FromName: "user", Text: text}
}

// ---- /start pipeline ----

func TestStartHomeMenu(t *testing.T) {
	fa := newFakeAdapter()
	fs := newFakeStore()
	s := newTestBot(t, testConfig(), fa, fs, nil)

	s.handleStart(context.Background(), userMsg(100, "/start"), "")

	msg := fa.lastSent(t)
	if msg.opt == nil || len(msg.opt.Markup) == 0 {
		t.Fatal("home menu sent without buttons")
	}
	if _, ok := fs.users[100]; !ok {
		t.Fatal("user was not upserted")
	}
}

func TestStartInvalidLink(t *testing.T) {
	fa := newFakeAdapter()
	s := newTestBot(t, testConfig(), fa, newFakeStore(), nil)

	s.handleStart(context.Background(), userMsg(100, ""), "!!!not-base64!!!")

	if got := fa.lastSent(t).text; got != textInvalidLink {
		t.Fatalf("reply = %q, want invalid-link text", got)
	}
	if len(fa.copies) != 0 {
		t.Fatal("invalid link must not deliver")
	}
}

func TestStartBannedUser(t *testing.T) {
	fa := newFakeAdapter()
	fs := newFakeStore()
	fs.users[100] = &store.User{ID: 100, Banned: true}
	s := newTestBot(t, testConfig(), fa, fs, nil)

	s.handleStart(context.Background(), userMsg(100, ""), linkcode.Encode(5))

	if got := fa.lastSent(t).text; got != textBanned {
		t.Fatalf("reply = %q, want banned text", got)
	}
	if len(fa.copies) != 0 {
		t.Fatal("banned user must not receive content")
	}
}

func TestStartDeliversContent(t *testing.T) {
	fa := newFakeAdapter()
	s := newTestBot(t, testConfig(), fa, newFakeStore(), nil)

	s.handleStart(context.Background(), userMsg(100, ""), linkcode.Encode(55))

	if len(fa.copies) != 1 {
		t.Fatalf("copies = %d, want 1", len(fa.copies))
	}
	if fa.copies[0].ChatID != testStorageChannel || fa.copies[0].MessageID != 55 {
		t.Fatalf("copied %+v, want msg 55 from storage channel", fa.copies[0])
	}
}

func TestStartGateBlocksAndRemediates(t *testing.T) {
	cfg := testConfig()
	cfg.ForceSub.Channels = []int64{-1002, -1003}
	fa := newFakeAdapter()
	fa.member[-1002] = map[int64]transport.MemberStatus{100: transport.StatusLeft}
	fa.invites[-1002] = "https://t.me/+abc"
	s := newTestBot(t, cfg, fa, newFakeStore(), nil)

	payload := linkcode.VerifyPayload(linkcode.Encode(9))
	s.handleStart(context.Background(), userMsg(100, ""), payload)

	if len(fa.copies) != 0 {
		t.Fatal("gated user must not receive content")
	}
	msg := fa.lastSent(t)
	if msg.opt == nil || len(msg.opt.Markup) != 2 {
		t.Fatalf("remediation rows = %v, want join row + retry row", msg.opt)
	}
	if got := msg.opt.Markup[0][0].URL; got != "https://t.me/+abc" {
		t.Fatalf("join button = %q, want invite link", got)
	}
	retry := msg.opt.Markup[1][0].URL
	if !strings.HasSuffix(retry, "?start="+linkcode.Encode(9)) {
		t.Fatalf("retry link %q must carry the payload with verify_ stripped", retry)
	}
}

func TestStartVerifyPromptUsesShortener(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"shortenedUrl":"https://short.example/x"}`)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Verify.Enabled = true
	cfg.Verify.Endpoints = []string{srv.URL + "/?u={link}"}
	fa := newFakeAdapter()
	pool := shortener.New(nil, time.Second, logx.Nop())
	s := newTestBot(t, cfg, fa, newFakeStore(), pool)

	s.handleStart(context.Background(), userMsg(100, ""), linkcode.Encode(7))

	if len(fa.copies) != 0 {
		t.Fatal("first contact with verification on must not deliver")
	}
	msg := fa.lastSent(t)
	if msg.opt == nil || len(msg.opt.Markup) == 0 {
		t.Fatal("verify prompt sent without a button")
	}
	if got := msg.opt.Markup[0][0].URL; got != "https://short.example/x" {
		t.Fatalf("unlock url = %q, want shortened link", got)
	}
}

func TestStartVerifyRoundTripDelivers(t *testing.T) {
	cfg := testConfig()
	cfg.Verify.Enabled = true
	cfg.Verify.Endpoints = []string{"https://short.example/?u={link}"}
	fa := newFakeAdapter()
	pool := shortener.New(nil, time.Second, logx.Nop())
	s := newTestBot(t, cfg, fa, newFakeStore(), pool)

	s.handleStart(context.Background(), userMsg(100, ""), linkcode.VerifyPayload(linkcode.Encode(7)))

	if len(fa.copies) != 1 || fa.copies[0].MessageID != 7 {
		t.Fatalf("copies = %v, want msg 7 delivered", fa.copies)
	}
}

func TestStartPremiumSkipsVerification(t *testing.T) {
	cfg := testConfig()
	cfg.Verify.Enabled = true
	cfg.Verify.Endpoints = []string{"https://short.example/?u={link}"}
	fa := newFakeAdapter()
	fs := newFakeStore()
	fs.users[100] = &store.User{ID: 100, Premium: true}
	pool := shortener.New(nil, time.Second, logx.Nop())
	s := newTestBot(t, cfg, fa, fs, pool)

	s.handleStart(context.Background(), userMsg(100, ""), linkcode.Encode(7))

	if len(fa.copies) != 1 {
		t.Fatal("premium user should get direct delivery")
	}
}

func TestStartBatchDelivers(t *testing.T) {
	fa := newFakeAdapter()
	fs := newFakeStore()
	id, _ := fs.CreateBatch(context.Background(), 10, 11)
	s := newTestBot(t, testConfig(), fa, fs, nil)

	s.handleStart(context.Background(), userMsg(100, ""), linkcode.BatchPayload(id))

	if len(fa.copies) != 2 {
		t.Fatalf("copies = %d, want the whole range", len(fa.copies))
	}
	if fa.copies[0].MessageID != 10 || fa.copies[1].MessageID != 11 {
		t.Fatalf("copied %v, want ids 10,11 in order", fa.copies)
	}
}

func TestStartBatchUnknown(t *testing.T) {
	fa := newFakeAdapter()
	s := newTestBot(t, testConfig(), fa, newFakeStore(), nil)

	s.handleStart(context.Background(), userMsg(100, ""), linkcode.BatchPayload("missing1"))

	if got := fa.lastSent(t).text; got != textBatchGone {
		t.Fatalf("reply = %q, want batch-gone text", got)
	}
}

// ---- indexer ----

func TestChannelPostIndexed(t *testing.T) {
	fa := newFakeAdapter()
	fs := newFakeStore()
	s := newTestBot(t, testConfig(), fa, fs, nil)

	s.handleChannelPost(context.Background(), &transport.Message{
		ID:     42,
		ChatID: testStorageChannel,
		Media:  &transport.MediaInfo{FileName: "movie.mkv", FileSize: 1536},
	})

	code := linkcode.Encode(42)
	f, ok := fs.files[code]
	if !ok {
		t.Fatalf("file not indexed under %q", code)
	}
	if f.Size != "1.50 KB" {
		t.Fatalf("size = %q, want 1.50 KB", f.Size)
	}
	if len(fa.markups) != 1 || len(fa.markups[0][0]) != 2 {
		t.Fatal("post should get Get File + Share buttons")
	}
}

func TestChannelPostOtherChannelIgnored(t *testing.T) {
	fa := newFakeAdapter()
	fs := newFakeStore()
	s := newTestBot(t, testConfig(), fa, fs, nil)

	s.handleChannelPost(context.Background(), &transport.Message{
		ID:     42,
		ChatID: -999,
		Media:  &transport.MediaInfo{FileName: "x"},
	})

	if len(fs.files) != 0 || len(fa.markups) != 0 {
		t.Fatal("posts outside the storage channel must be ignored")
	}
}

// ---- search ----

func TestSearchRejectsShortQuery(t *testing.T) {
	fa := newFakeAdapter()
	s := newTestBot(t, testConfig(), fa, newFakeStore(), nil)

	s.handleSearch(context.Background(), userMsg(100, "ab"), "ab")

	if got := fa.lastSent(t).text; got != textQueryShort {
		t.Fatalf("reply = %q, want short-query text", got)
	}
}

func TestSearchListsResults(t *testing.T) {
	fa := newFakeAdapter()
	fs := newFakeStore()
	fs.files["c1"] = store.File{MsgID: 5, Name: "holiday.mp4", Code: "c1", Size: "1.00 MB"}
	s := newTestBot(t, testConfig(), fa, fs, nil)

	s.handleSearch(context.Background(), userMsg(100, "holiday"), "holiday")

	msg := fa.lastSent(t)
	if !strings.Contains(msg.text, "holiday.mp4") || !strings.Contains(msg.text, "?start=") {
		t.Fatalf("result text %q should carry name and deep link", msg.text)
	}
}

// ---- admin ----

func TestAdminOnlyCommands(t *testing.T) {
	fa := newFakeAdapter()
	s := newTestBot(t, testConfig(), fa, newFakeStore(), nil)

	s.handleCommand(context.Background(), userMsg(100, "/stats"), "/stats")

	if got := fa.lastSent(t).text; got != textNotAllowed {
		t.Fatalf("reply = %q, want not-allowed text", got)
	}
}

func TestOwnerAlwaysAdmin(t *testing.T) {
	fa := newFakeAdapter()
	s := newTestBot(t, testConfig(), fa, newFakeStore(), nil)

	s.handleCommand(context.Background(), userMsg(1, "/stats"), "/stats")

	if got := fa.lastSent(t).text; !strings.Contains(got, "Uptime") {
		t.Fatalf("reply = %q, want stats", got)
	}
}

func TestBanCommand(t *testing.T) {
	fa := newFakeAdapter()
	fs := newFakeStore()
	s := newTestBot(t, testConfig(), fa, fs, nil)

	s.handleCommand(context.Background(), userMsg(2, "/ban 555"), "/ban 555")

	u, err := fs.User(context.Background(), 555)
	if err != nil || !u.Banned {
		t.Fatalf("user = %+v err = %v, want banned", u, err)
	}
}

func TestBatchCommandCreatesRange(t *testing.T) {
	fa := newFakeAdapter()
	fs := newFakeStore()
	s := newTestBot(t, testConfig(), fa, fs, nil)

	cmd := "/batch https://t.me/c/1000/3 https://t.me/c/1000/8"
	s.handleCommand(context.Background(), userMsg(2, cmd), cmd)

	if len(fs.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(fs.batches))
	}
	for _, b := range fs.batches {
		if b.FirstID != 3 || b.LastID != 8 {
			t.Fatalf("range = [%d,%d], want [3,8]", b.FirstID, b.LastID)
		}
	}
	if len(fa.photos) != 1 {
		t.Fatal("batch reply should carry the QR photo")
	}
	if !strings.Contains(fa.photos[0].text, "?start=batch_") {
		t.Fatalf("caption %q should carry the batch link", fa.photos[0].text)
	}
}

func TestBatchCommandRejectsReversedRange(t *testing.T) {
	fa := newFakeAdapter()
	fs := newFakeStore()
	s := newTestBot(t, testConfig(), fa, fs, nil)

	cmd := "/batch https://t.me/c/1000/8 https://t.me/c/1000/3"
	s.handleCommand(context.Background(), userMsg(2, cmd), cmd)

	if len(fs.batches) != 0 {
		t.Fatal("reversed range must not be stored")
	}
	if got := fa.lastSent(t).text; got != textBatchOrder {
		t.Fatalf("reply = %q, want order error", got)
	}
}

func TestBatchCommandRejectsForeignChannel(t *testing.T) {
	fa := newFakeAdapter()
	fs := newFakeStore()
	s := newTestBot(t, testConfig(), fa, fs, nil)

	cmd := "/batch https://t.me/c/7777/3 https://t.me/c/7777/8"
	s.handleCommand(context.Background(), userMsg(2, cmd), cmd)

	if len(fs.batches) != 0 {
		t.Fatal("links outside the storage channel must be rejected")
	}
}

func TestBroadcastCommand(t *testing.T) {
	fa := newFakeAdapter()
	fs := newFakeStore()
	fs.users[100] = &store.User{ID: 100}
	fs.users[101] = &store.User{ID: 101}
	s := newTestBot(t, testConfig(), fa, fs, nil)

	m := userMsg(2, "/broadcast")
	m.ReplyToID = 77
	done := make(chan struct{})
	go func() {
		s.cmdBroadcast(context.Background(), m)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("broadcast command never finished")
	}

	if len(fa.copies) != 2 {
		t.Fatalf("copies = %d, want one per user", len(fa.copies))
	}
	fa.mu.Lock()
	defer fa.mu.Unlock()
	if len(fa.edits) != 1 || !strings.Contains(fa.edits[0].text, "Succeeded: 2") {
		t.Fatalf("edits = %v, want final tally", fa.edits)
	}
}

// ---- callbacks / join requests ----

func TestCallbackClose(t *testing.T) {
	fa := newFakeAdapter()
	s := newTestBot(t, testConfig(), fa, newFakeStore(), nil)

	s.handleCallback(context.Background(), &transport.Callback{ID: "cb", FromID: 100, ChatID: 100, MessageID: 9, Data: "close"})

	if len(fa.deletes) != 1 || fa.deletes[0].MessageID != 9 {
		t.Fatalf("deletes = %v, want message 9 removed", fa.deletes)
	}
}

func TestCallbackAccount(t *testing.T) {
	fa := newFakeAdapter()
	fs := newFakeStore()
	fs.users[100] = &store.User{ID: 100, Premium: true, JoinedAt: time.Now()}
	s := newTestBot(t, testConfig(), fa, fs, nil)

	s.handleCallback(context.Background(), &transport.Callback{ID: "cb", FromID: 100, ChatID: 100, MessageID: 9, Data: "account"})

	fa.mu.Lock()
	defer fa.mu.Unlock()
	if len(fa.edits) != 1 || !strings.Contains(fa.edits[0].text, "Premium") {
		t.Fatalf("edits = %v, want premium account card", fa.edits)
	}
}

func TestJoinRequestApproved(t *testing.T) {
	cfg := testConfig()
	cfg.ForceSub.Channels = []int64{-1002}
	cfg.ForceSub.ApproveJoinRequests = true
	fa := newFakeAdapter()
	s := newTestBot(t, cfg, fa, newFakeStore(), nil)

	s.handleJoinRequest(context.Background(), &transport.JoinRequest{ChatID: -1002, ChatName: "main", UserID: 100})

	if len(fa.approvals) != 1 || fa.approvals[0] != [2]int64{-1002, 100} {
		t.Fatalf("approvals = %v", fa.approvals)
	}
}

func TestJoinRequestIgnoredForUnknownChannel(t *testing.T) {
	cfg := testConfig()
	cfg.ForceSub.Channels = []int64{-1002}
	cfg.ForceSub.ApproveJoinRequests = true
	fa := newFakeAdapter()
	s := newTestBot(t, cfg, fa, newFakeStore(), nil)

	s.handleJoinRequest(context.Background(), &transport.JoinRequest{ChatID: -555, UserID: 100})

	if len(fa.approvals) != 0 {
		t.Fatal("requests on unrelated channels must be ignored")
	}
}

func TestHumanSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{999, "999 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{5 << 20, "5.00 MB"},
		{3 << 30, "3.00 GB"},
		{2 << 40, "2.00 TB"},
	}
	for _, tc := range cases {
		if got := humanSize(tc.in); got != tc.want {
			t.Errorf("humanSize(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestApplyHotReload(t *testing.T) {
	fa := newFakeAdapter()
	s := newTestBot(t, testConfig(), fa, newFakeStore(), nil)

	cfg := testConfig()
	cfg.ForceSub.Channels = []int64{-1009}
	cfg.Delivery.ProtectContent = true
	s.Apply(cfg)

	st := s.settings()
	if len(st.forceSub) != 1 || st.forceSub[0] != -1009 {
		t.Fatalf("forceSub = %v, want reloaded list", st.forceSub)
	}
	if !st.protect {
		t.Fatal("protect flag not reloaded")
	}
}
