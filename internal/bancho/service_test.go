package bancho

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/soumetsu-project/soumetsu/internal/geoloc"
	"github.com/soumetsu-project/soumetsu/internal/handlers"
	"github.com/soumetsu-project/soumetsu/internal/models"
	"github.com/soumetsu-project/soumetsu/internal/protocol"
)

const passwordMD5 = "5f4dcc3b5aa765d61d8327deb882cf99"

type fakeUsers struct {
	mu       sync.Mutex
	users    map[string]*models.User
	err      error
	lastSeen map[int64]int64
}

func (f *fakeUsers) FetchByName(_ context.Context, name string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[models.SafeName(name)], nil
}

func (f *fakeUsers) UpdateLastOnline(_ context.Context, id, unix int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSeen[id] = unix
	return nil
}

type fakeHWIDs struct {
	mu      sync.Mutex
	records []string
}

func (f *fakeHWIDs) Record(_ context.Context, userID int64, mac, unique, disk string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, strings.Join([]string{mac, unique, disk}, ":"))
	return nil
}

type fakeGeo struct{}

func (fakeGeo) Lookup(ip string) (*geoloc.Result, error) {
	if ip == "1.1.1.1" {
		return &geoloc.Result{Longitude: 151.2, Latitude: -33.8, CountryCode: "AU"}, nil
	}
	return nil, geoloc.ErrNoResult
}

type fixture struct {
	svc   *Service
	users *fakeUsers
	hwids *fakeHWIDs
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(passwordMD5), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	normal := models.PrivUserPublic | models.PrivUserNormal
	f := &fixture{
		users: &fakeUsers{
			users: map[string]*models.User{
				"alice":  {ID: 1000, Name: "Alice", NameSafe: "alice", PasswordHash: string(hash), Privileges: normal, Country: "GB"},
				"bob":    {ID: 1001, Name: "Bob", NameSafe: "bob", PasswordHash: string(hash), Privileges: normal, Country: "US"},
				"banned": {ID: 1002, Name: "Banned", NameSafe: "banned", PasswordHash: string(hash)},
				"shadow": {ID: 1003, Name: "Shadow", NameSafe: "shadow", PasswordHash: string(hash), Privileges: models.PrivUserNormal},
			},
			lastSeen: make(map[int64]int64),
		},
		hwids: &fakeHWIDs{},
	}
	f.svc = NewService(cfg, Deps{Users: f.users, HWIDs: f.hwids, Geo: fakeGeo{}})
	return f
}

func loginBody(name, password string) []byte {
	return []byte(name + "\n" + password + "\nb20231030|0|0|" + validHashes + "|0\n")
}

// ids splits a response into its packet ids.
func ids(t *testing.T, b []byte) []protocol.PacketID {
	t.Helper()
	r := protocol.NewReader(b)
	var out []protocol.PacketID
	for !r.Empty() {
		id, n, err := r.ReadHeader()
		if err != nil {
			t.Fatalf("ReadHeader: %v", err)
		}
		if err := r.Skip(int(n)); err != nil {
			t.Fatalf("Skip: %v", err)
		}
		out = append(out, id)
	}
	return out
}

func count(list []protocol.PacketID, id protocol.PacketID) int {
	var n int
	for _, v := range list {
		if v == id {
			n++
		}
	}
	return n
}

func loginCode(t *testing.T, b []byte) int32 {
	t.Helper()
	r := protocol.NewReader(b)
	id, _, err := r.ReadHeader()
	if err != nil || id != protocol.SrvLoginResponse {
		t.Fatalf("first packet = %v (%v), want login response", id, err)
	}
	code, err := r.ReadI32()
	if err != nil {
		t.Fatalf("ReadI32: %v", err)
	}
	return code
}

func firstPacketOf(t *testing.T, b []byte, want protocol.PacketID) *protocol.Reader {
	t.Helper()
	r := protocol.NewReader(b)
	for !r.Empty() {
		id, n, err := r.ReadHeader()
		if err != nil {
			t.Fatalf("ReadHeader: %v", err)
		}
		if id == want {
			return r
		}
		r.Skip(int(n))
	}
	t.Fatalf("packet %v not found", want)
	return nil
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want int32
	}{
		{"malformed", []byte("garbage"), protocol.LoginFailed},
		{"unknown_user", loginBody("nobody", passwordMD5), protocol.LoginFailed},
		{"wrong_password", loginBody("alice", strings.Repeat("0", 32)), protocol.LoginFailed},
		{"banned", loginBody("banned", passwordMD5), protocol.LoginBanned},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			token, resp := f.svc.Login(context.Background(), tc.body, "127.0.0.1")
			if token != FailedToken {
				t.Errorf("token = %q", token)
			}
			if code := loginCode(t, resp); code != tc.want {
				t.Errorf("code = %d, want %d", code, tc.want)
			}
			if f.svc.Sessions().Len() != 0 {
				t.Error("session created on failed login")
			}
		})
	}
}

func TestLoginServerError(t *testing.T) {
	f := newFixture(t, Config{})
	f.users.err = errors.New("db down")
	token, resp := f.svc.Login(context.Background(), loginBody("alice", passwordMD5), "127.0.0.1")
	if token != FailedToken {
		t.Errorf("token = %q", token)
	}
	if code := loginCode(t, resp); code != protocol.LoginServerError {
		t.Errorf("code = %d", code)
	}
	if count(ids(t, resp), protocol.SrvNotification) != 1 {
		t.Error("missing notification")
	}
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t, Config{WelcomeMessage: "hi"})
	ctx := context.Background()

	token, resp := f.svc.Login(ctx, loginBody("Alice", passwordMD5), "1.1.1.1")
	if token == FailedToken || token == "" {
		t.Fatalf("token = %q", token)
	}

	got := ids(t, resp)
	if got[0] != protocol.SrvProtocolVersion {
		t.Errorf("first packet = %v", got[0])
	}
	r := firstPacketOf(t, resp, protocol.SrvLoginResponse)
	if id, _ := r.ReadI32(); id != 1000 {
		t.Errorf("login response id = %d", id)
	}
	for id, want := range map[protocol.PacketID]int{
		protocol.SrvPrivileges:         1,
		protocol.SrvSilenceEnd:         1,
		protocol.SrvNotification:       1,
		protocol.SrvChannelInfo:        2,
		protocol.SrvChannelJoinSuccess: 2,
		protocol.SrvChannelInfoEnd:     1,
		protocol.SrvUserPresence:       1,
		protocol.SrvUserStats:          1,
		protocol.SrvFriendsList:        1,
		protocol.SrvRestrictedNotify:   0,
	} {
		if n := count(got, id); n != want {
			t.Errorf("%v count = %d, want %d", id, n, want)
		}
	}

	sess, ok := f.svc.Sessions().Get(token)
	if !ok {
		t.Fatal("session not registered")
	}
	if sess.Options().CountryID != geoloc.CountryID("AU") {
		t.Errorf("country = %d", sess.Options().CountryID)
	}
	main, _ := f.svc.Streams().Get(handlers.MainStream)
	osu, _ := f.svc.Streams().Get("#osu")
	if !main.Contains(token) || !osu.Contains(token) {
		t.Error("session not in main and #osu")
	}
	if len(f.hwids.records) != 1 || f.hwids.records[0] != "adaptersmd5:uninstallmd5:diskmd5" {
		t.Errorf("hwid records = %v", f.hwids.records)
	}
	if _, ok := f.users.lastSeen[1000]; !ok {
		t.Error("last online not updated")
	}
}

func TestLoginAnnouncesToOthers(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	aliceTok, _ := f.svc.Login(ctx, loginBody("alice", passwordMD5), "127.0.0.1")
	_, resp := f.svc.Login(ctx, loginBody("bob", passwordMD5), "127.0.0.1")

	if n := count(ids(t, resp), protocol.SrvUserPresence); n != 2 {
		t.Errorf("bob saw %d presences, want 2", n)
	}
	alice, _ := f.svc.Sessions().Get(aliceTok)
	queued := ids(t, alice.Drain())
	if count(queued, protocol.SrvUserPresence) != 1 || count(queued, protocol.SrvUserStats) != 1 {
		t.Errorf("alice mailbox = %v", queued)
	}
}

func TestRestrictedLoginIsHidden(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	aliceTok, _ := f.svc.Login(ctx, loginBody("alice", passwordMD5), "127.0.0.1")
	alice, _ := f.svc.Sessions().Get(aliceTok)
	alice.Drain()

	token, resp := f.svc.Login(ctx, loginBody("shadow", passwordMD5), "127.0.0.1")
	if token == FailedToken {
		t.Fatal("restricted user rejected")
	}
	if count(ids(t, resp), protocol.SrvRestrictedNotify) != 1 {
		t.Error("missing restrict notify")
	}
	if alice.Pending() != 0 {
		t.Error("restricted login was announced")
	}
}

func TestReloginReplacesSession(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	first, _ := f.svc.Login(ctx, loginBody("alice", passwordMD5), "127.0.0.1")
	second, _ := f.svc.Login(ctx, loginBody("alice", passwordMD5), "127.0.0.1")
	if first == second {
		t.Fatal("tokens should differ")
	}
	if _, ok := f.svc.Sessions().Get(first); ok {
		t.Error("old session still registered")
	}
	if f.svc.Sessions().Len() != 1 {
		t.Errorf("sessions = %d", f.svc.Sessions().Len())
	}
	main, _ := f.svc.Streams().Get(handlers.MainStream)
	if main.Contains(first) || !main.Contains(second) {
		t.Error("main stream membership wrong")
	}

	resp, _ := f.svc.Poll(ctx, first, nil)
	if msg := notificationText(t, resp); msg != "You logged in from another location." {
		t.Errorf("old client notification = %q", msg)
	}
}

func TestPollUnknownToken(t *testing.T) {
	f := newFixture(t, Config{})
	resp, err := f.svc.Poll(context.Background(), "missing", nil)
	if !errors.Is(err, ErrUnknownSession) {
		t.Errorf("err = %v", err)
	}
	got := ids(t, resp)
	if len(got) != 2 || got[0] != protocol.SrvRestart {
		t.Errorf("packets = %v", got)
	}
}

func TestPollDispatchesAndDrains(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	token, _ := f.svc.Login(ctx, loginBody("alice", passwordMD5), "127.0.0.1")
	sess, _ := f.svc.Sessions().Get(token)
	sess.Send(protocol.Notification("queued"))

	body := append(protocol.Packet(protocol.OsuHeartbeat, nil), protocol.Packet(protocol.OsuRequestStatusUpdate, nil)...)
	resp, err := f.svc.Poll(ctx, token, body)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	got := ids(t, resp)
	want := []protocol.PacketID{protocol.SrvUserStats, protocol.SrvNotification}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("packets = %v, want %v", got, want)
	}
	if sess.Pending() != 0 {
		t.Error("mailbox not drained")
	}
}

func TestPollOverflowDisconnects(t *testing.T) {
	f := newFixture(t, Config{MailboxLimit: 64})
	ctx := context.Background()
	token, _ := f.svc.Login(ctx, loginBody("alice", passwordMD5), "127.0.0.1")
	sess, _ := f.svc.Sessions().Get(token)
	sess.Send(make([]byte, 128))

	resp, err := f.svc.Poll(ctx, token, nil)
	if !errors.Is(err, ErrSessionOverflowed) {
		t.Errorf("err = %v", err)
	}
	if count(ids(t, resp), protocol.SrvRestart) != 1 {
		t.Error("missing restart")
	}
	if _, ok := f.svc.Sessions().Get(token); ok {
		t.Error("overflowed session still registered")
	}
}

func TestPollBodyTooLarge(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	token, _ := f.svc.Login(ctx, loginBody("alice", passwordMD5), "127.0.0.1")

	_, err := f.svc.Poll(ctx, token, make([]byte, protocol.MaxBodySize+1))
	if !errors.Is(err, protocol.ErrBodyTooLarge) {
		t.Errorf("err = %v", err)
	}
}

func TestExpire(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	staleTok, _ := f.svc.Login(ctx, loginBody("alice", passwordMD5), "127.0.0.1")
	freshTok, _ := f.svc.Login(ctx, loginBody("bob", passwordMD5), "127.0.0.1")

	stale, _ := f.svc.Sessions().Get(staleTok)
	stale.Touch(time.Now().Add(-time.Hour))
	fresh, _ := f.svc.Sessions().Get(freshTok)
	fresh.Drain()

	if n := f.svc.Expire(ctx, time.Minute); n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}
	if _, ok := f.svc.Sessions().Get(staleTok); ok {
		t.Error("stale session kept")
	}
	if count(ids(t, fresh.Drain()), protocol.SrvUserLogout) != 1 {
		t.Error("logout not broadcast")
	}
}

func TestLogoutAndShutdown(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	a, _ := f.svc.Login(ctx, loginBody("alice", passwordMD5), "127.0.0.1")
	f.svc.Login(ctx, loginBody("bob", passwordMD5), "127.0.0.1")

	if !f.svc.Logout(ctx, a) {
		t.Error("Logout returned false")
	}
	if f.svc.Logout(ctx, a) {
		t.Error("second Logout returned true")
	}
	f.svc.Shutdown(ctx)
	if f.svc.Sessions().Len() != 0 {
		t.Errorf("sessions after shutdown = %d", f.svc.Sessions().Len())
	}
	for _, st := range f.svc.Streams().All() {
		if st.Len() != 0 {
			t.Errorf("stream %s has %d members", st.Name(), st.Len())
		}
	}
}

func TestKick(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	a, _ := f.svc.Login(ctx, loginBody("alice", passwordMD5), "127.0.0.1")
	b, _ := f.svc.Login(ctx, loginBody("bob", passwordMD5), "127.0.0.1")
	bob, _ := f.svc.Sessions().Get(b)
	bob.Drain()

	if !f.svc.Kick(ctx, a, "bye") {
		t.Fatal("Kick returned false")
	}
	if f.svc.Kick(ctx, a, "bye") {
		t.Error("second Kick returned true")
	}
	if _, ok := f.svc.Sessions().Get(a); ok {
		t.Error("kicked session still registered")
	}
	if count(ids(t, bob.Drain()), protocol.SrvUserLogout) != 1 {
		t.Error("other players not told about the kick")
	}

	resp, err := f.svc.Poll(ctx, a, nil)
	if !errors.Is(err, ErrUnknownSession) {
		t.Errorf("poll after kick err = %v", err)
	}
	if msg := notificationText(t, resp); msg != "bye" {
		t.Errorf("kick reason = %q", msg)
	}
	got := ids(t, resp)
	if got[len(got)-1] != protocol.SrvRestart {
		t.Errorf("packets = %v, want restart last", got)
	}

	resp, _ = f.svc.Poll(ctx, a, nil)
	if msg := notificationText(t, resp); msg != "The server has restarted." {
		t.Errorf("second poll notification = %q", msg)
	}
}

func notificationText(t *testing.T, b []byte) string {
	t.Helper()
	msg, err := firstPacketOf(t, b, protocol.SrvNotification).ReadString()
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	return msg
}

func TestFarewellExpires(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	old := time.Now().Add(-2 * farewellTTL)
	f.svc.keepFarewell("stale", protocol.Notification("too late"), old)
	f.svc.keepFarewell("pruned", protocol.Notification("too late"), old)

	resp, _ := f.svc.Poll(ctx, "stale", nil)
	if msg := notificationText(t, resp); msg != "The server has restarted." {
		t.Errorf("expired farewell delivered: %q", msg)
	}

	f.svc.Expire(ctx, time.Hour)
	f.svc.farewellMu.Lock()
	n := len(f.svc.farewells)
	f.svc.farewellMu.Unlock()
	if n != 0 {
		t.Errorf("farewells after Expire = %d", n)
	}
}

func TestAnnounce(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	a, _ := f.svc.Login(ctx, loginBody("alice", passwordMD5), "127.0.0.1")
	alice, _ := f.svc.Sessions().Get(a)
	alice.Drain()

	n, ok := f.svc.Announce("main", "maintenance soon")
	if !ok || n != 1 {
		t.Fatalf("Announce = %d, %v", n, ok)
	}
	r := firstPacketOf(t, alice.Drain(), protocol.SrvNotification)
	if msg, _ := r.ReadString(); msg != "maintenance soon" {
		t.Errorf("notification = %q", msg)
	}
	if _, ok := f.svc.Announce("#nowhere", "x"); ok {
		t.Error("Announce to unknown stream succeeded")
	}
}

func TestWelcomeMessage(t *testing.T) {
	f := newFixture(t, Config{WelcomeMessage: "hi"})
	ctx := context.Background()
	if f.svc.WelcomeMessage() != "hi" {
		t.Errorf("WelcomeMessage = %q", f.svc.WelcomeMessage())
	}

	f.svc.SetWelcomeMessage("")
	_, resp := f.svc.Login(ctx, loginBody("alice", passwordMD5), "127.0.0.1")
	if count(ids(t, resp), protocol.SrvNotification) != 0 {
		t.Error("empty welcome message still sent")
	}

	f.svc.SetWelcomeMessage("changed")
	_, resp = f.svc.Login(ctx, loginBody("bob", passwordMD5), "127.0.0.1")
	r := firstPacketOf(t, resp, protocol.SrvNotification)
	if msg, _ := r.ReadString(); msg != "changed" {
		t.Errorf("welcome = %q", msg)
	}
}
