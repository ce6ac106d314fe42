package command

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/grab-your-parachutes/overlord-bot/chat"
	"github.com/grab-your-parachutes/overlord-bot/personality"
	"github.com/grab-your-parachutes/overlord-bot/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.Init()
	os.Exit(m.Run())
}

type sentLine struct {
	channel string
	text    string
	tts     bool
}

type recordingMessenger struct {
	lines []sentLine
}

func (m *recordingMessenger) Send(channel, text string, tts bool) {
	m.lines = append(m.lines, sentLine{channel: channel, text: text, tts: tts})
}

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRegistry(t *testing.T) (*Registry, *recordingMessenger, *testClock) {
	t.Helper()
	msgr := &recordingMessenger{}
	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	deps := Deps{
		Messenger:   msgr,
		Personality: personality.NewManager("", rand.New(rand.NewSource(1))),
	}
	r := NewRegistry("!", deps, nil)
	r.now = clock.Now
	r.startTime = clock.t
	return r, msgr, clock
}

func viewerMsg(content string) *chat.Message {
	return &chat.Message{Channel: "hangar", Username: "pilot", Content: content}
}

func modMsg(content string) *chat.Message {
	m := viewerMsg(content)
	m.Username = "deputy"
	m.IsMod = true
	return m
}

func TestDispatchUnknownCommand(t *testing.T) {
	r, msgr, _ := newTestRegistry(t)
	r.Dispatch(context.Background(), viewerMsg("!warp 9"))
	if len(msgr.lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(msgr.lines))
	}
	want := "Unknown command: warp. Type !help for assistance."
	if msgr.lines[0].text != want {
		t.Errorf("text = %q, want %q", msgr.lines[0].text, want)
	}
}

func TestCooldownBlocksSecondCall(t *testing.T) {
	r, msgr, clock := newTestRegistry(t)
	ctx := context.Background()

	r.Dispatch(ctx, viewerMsg("!say hello"))
	r.Dispatch(ctx, viewerMsg("!say hello again"))
	if len(msgr.lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(msgr.lines))
	}
	if want := "Command cooldown active. Await 5 seconds. Comply."; msgr.lines[1].text != want {
		t.Errorf("second reply = %q, want %q", msgr.lines[1].text, want)
	}

	clock.Advance(6 * time.Second)
	r.Dispatch(ctx, viewerMsg("!say once more"))
	if got := msgr.lines[len(msgr.lines)-1].text; !strings.HasPrefix(got, "once more") {
		t.Errorf("after cooldown expiry got %q", got)
	}
}

func TestCooldownSharedAcrossUsers(t *testing.T) {
	r, msgr, _ := newTestRegistry(t)
	ctx := context.Background()

	r.Dispatch(ctx, viewerMsg("!say first"))
	other := viewerMsg("!say second")
	other.Username = "copilot"
	r.Dispatch(ctx, other)
	if got := msgr.lines[1].text; !strings.Contains(got, "cooldown active") {
		t.Errorf("second user should hit shared cooldown, got %q", got)
	}
}

func TestModCommandDeniedForViewer(t *testing.T) {
	r, msgr, _ := newTestRegistry(t)
	r.Dispatch(context.Background(), viewerMsg("!timeout baduser 60"))
	want := "This command requires moderator clearance. Access denied. Comply."
	if msgr.lines[0].text != want {
		t.Errorf("reply = %q, want %q", msgr.lines[0].text, want)
	}
}

func TestCooldownConsumedOnDenial(t *testing.T) {
	r, msgr, _ := newTestRegistry(t)
	ctx := context.Background()

	r.Dispatch(ctx, viewerMsg("!timeout baduser 60"))
	r.Dispatch(ctx, modMsg("!timeout baduser 60"))
	if got := msgr.lines[1].text; !strings.Contains(got, "cooldown active") {
		t.Errorf("mod should hit cooldown consumed by denied attempt, got %q", got)
	}
}

func TestBroadcasterPassesModGate(t *testing.T) {
	r, msgr, _ := newTestRegistry(t)
	m := viewerMsg("!clearchat")
	m.IsBroadcaster = true
	r.Dispatch(context.Background(), m)
	if len(msgr.lines) < 2 || msgr.lines[0].text != "/clear" {
		t.Fatalf("expected /clear then confirmation, got %+v", msgr.lines)
	}
	if !strings.HasPrefix(msgr.lines[1].text, "Chat purge initiated.") {
		t.Errorf("confirmation = %q", msgr.lines[1].text)
	}
}

func TestTimeoutSendsCommandAndConfirmation(t *testing.T) {
	r, msgr, _ := newTestRegistry(t)
	r.Dispatch(context.Background(), modMsg("!timeout LoudGuy 120"))
	if len(msgr.lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(msgr.lines))
	}
	if msgr.lines[0].text != "/timeout loudguy 120" {
		t.Errorf("timeout line = %q", msgr.lines[0].text)
	}
	if !strings.Contains(msgr.lines[1].text, "User loudguy has been silenced for 120 seconds.") {
		t.Errorf("confirmation = %q", msgr.lines[1].text)
	}
}

func TestTimeoutRejectsBadDuration(t *testing.T) {
	r, msgr, _ := newTestRegistry(t)
	r.Dispatch(context.Background(), modMsg("!timeout baduser soon"))
	if got := msgr.lines[0].text; !strings.Contains(got, "Invalid duration") {
		t.Errorf("reply = %q", got)
	}
}

func TestAddComThenRunSubstitutesVariables(t *testing.T) {
	r, msgr, _ := newTestRegistry(t)
	ctx := context.Background()

	r.Dispatch(ctx, modMsg("!addcom flightrules Welcome {user}, rules of channel {channel} apply."))
	if got := msgr.lines[0].text; !strings.Contains(got, "Command !flightrules added to database.") {
		t.Fatalf("addcom reply = %q", got)
	}

	r.Dispatch(ctx, viewerMsg("!flightrules"))
	got := msgr.lines[1].text
	if !strings.HasPrefix(got, "Welcome pilot, rules of channel hangar apply.") {
		t.Errorf("custom response = %q", got)
	}
}

func TestAddComRejectsBuiltinShadow(t *testing.T) {
	r, msgr, _ := newTestRegistry(t)
	r.Dispatch(context.Background(), modMsg("!addcom status I see everything"))
	want := "Cannot override built-in commands. Your attempt has been logged. Comply."
	if msgr.lines[0].text != want {
		t.Errorf("reply = %q, want %q", msgr.lines[0].text, want)
	}
	if _, ok := r.Custom("status"); ok {
		t.Error("builtin name must not be stored as custom command")
	}
}

func TestEditComAndDelCom(t *testing.T) {
	r, msgr, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := r.AddCustom("motto", "Fly safe."); err != nil {
		t.Fatal(err)
	}
	r.Dispatch(ctx, modMsg("!editcom motto Fly fast."))
	if got, _ := r.Custom("motto"); got != "Fly fast." {
		t.Errorf("after edit, response = %q", got)
	}
	r.Dispatch(ctx, modMsg("!delcom motto"))
	if _, ok := r.Custom("motto"); ok {
		t.Error("command should be deleted")
	}
	if got := msgr.lines[len(msgr.lines)-1].text; !strings.Contains(got, "purged from database") {
		t.Errorf("delcom reply = %q", got)
	}
}

func TestEditComUnknownCommand(t *testing.T) {
	r, msgr, _ := newTestRegistry(t)
	r.Dispatch(context.Background(), modMsg("!editcom nosuch whatever"))
	if got := msgr.lines[0].text; !strings.Contains(got, "not found") {
		t.Errorf("reply = %q", got)
	}
}

func TestAliasResolvesToBuiltin(t *testing.T) {
	r, msgr, _ := newTestRegistry(t)
	ctx := context.Background()

	r.Dispatch(ctx, modMsg("!alias announce say"))
	if got := msgr.lines[0].text; !strings.Contains(got, "Alias !announce -> !say established.") {
		t.Fatalf("alias reply = %q", got)
	}

	r.Dispatch(ctx, viewerMsg("!announce boarding now"))
	got := msgr.lines[1]
	if !strings.HasPrefix(got.text, "boarding now") {
		t.Errorf("aliased say = %q", got.text)
	}
	if !got.tts {
		t.Error("say output should be flagged for readout")
	}
}

func TestAliasUnknownTargetRejected(t *testing.T) {
	r, msgr, _ := newTestRegistry(t)
	r.Dispatch(context.Background(), modMsg("!alias shortcut nosuchcmd"))
	if got := msgr.lines[0].text; !strings.Contains(got, "Command !nosuchcmd not found.") {
		t.Errorf("reply = %q", got)
	}
}

func TestAlertFallsBackToBuiltins(t *testing.T) {
	r, msgr, clock := newTestRegistry(t)
	ctx := context.Background()

	r.Dispatch(ctx, viewerMsg("!alert takeoff"))
	if len(msgr.lines) != 1 || msgr.lines[0].text == "" {
		t.Fatalf("expected builtin takeoff alert, got %+v", msgr.lines)
	}
	if !msgr.lines[0].tts {
		t.Error("alerts should be read out")
	}

	clock.Advance(10 * time.Second)
	r.Dispatch(ctx, viewerMsg("!alert nosuchalert"))
	want := "Alert 'nosuchalert' not found in database. Verify and retry. Comply."
	if msgr.lines[1].text != want {
		t.Errorf("reply = %q, want %q", msgr.lines[1].text, want)
	}
}

func TestMetarRequiresStation(t *testing.T) {
	r, msgr, _ := newTestRegistry(t)
	r.Dispatch(context.Background(), viewerMsg("!metar"))
	if got := msgr.lines[0].text; got != "Usage: !metar <ICAO_CODE>" {
		t.Errorf("reply = %q", got)
	}
}

func TestUptimeString(t *testing.T) {
	r, _, clock := newTestRegistry(t)
	clock.Advance(26*time.Hour + 3*time.Minute + 4*time.Second)
	if got := r.UptimeString(); got != "1d 2h 3m 4s" {
		t.Errorf("UptimeString() = %q", got)
	}
}

type fakeChannel struct {
	game, title string
	uptime      time.Duration
	live        bool
	err         error
}

func (c *fakeChannel) Info(ctx context.Context) (string, string, error) {
	return c.game, c.title, nil
}

func (c *fakeChannel) Uptime(ctx context.Context) (time.Duration, bool, error) {
	return c.uptime, c.live, c.err
}

func TestUptimePrefersLiveStream(t *testing.T) {
	r, msgr, clock := newTestRegistry(t)
	ch := &fakeChannel{uptime: 2*time.Hour + 5*time.Minute, live: true}
	r.Deps.Channel = ch
	clock.Advance(3 * time.Minute)

	if err := r.AddCustom("howlong", "Live for {uptime}."); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	r.Dispatch(ctx, viewerMsg("!howlong"))
	if got := msgr.lines[0].text; !strings.Contains(got, "Live for 2h 5m 0s.") {
		t.Errorf("live reply = %q", got)
	}

	// Offline falls back to process uptime.
	ch.live = false
	clock.Advance(10 * time.Second)
	r.Dispatch(ctx, viewerMsg("!howlong"))
	if got := msgr.lines[1].text; !strings.Contains(got, "Live for 0d 0h 3m 10s.") {
		t.Errorf("offline reply = %q", got)
	}

	// A lookup error also falls back rather than failing the command.
	ch.live, ch.err = true, errors.New("helix down")
	clock.Advance(10 * time.Second)
	r.Dispatch(ctx, viewerMsg("!howlong"))
	if got := msgr.lines[2].text; !strings.Contains(got, "Live for 0d 0h 3m 20s.") {
		t.Errorf("error reply = %q", got)
	}
}

func TestStatsTracksUsage(t *testing.T) {
	r, _, clock := newTestRegistry(t)
	ctx := context.Background()

	r.Dispatch(ctx, viewerMsg("!say one"))
	clock.Advance(10 * time.Second)
	r.Dispatch(ctx, viewerMsg("!say two"))
	clock.Advance(10 * time.Second)
	r.Dispatch(ctx, viewerMsg("!help"))

	total, mostUsed, customs, aliases := r.Stats()
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if mostUsed != "say" {
		t.Errorf("mostUsed = %q, want say", mostUsed)
	}
	if customs != 0 || aliases != 0 {
		t.Errorf("customs = %d aliases = %d, want 0 0", customs, aliases)
	}
}

func TestUnconfiguredCollaboratorsReplyOffline(t *testing.T) {
	r, msgr, clock := newTestRegistry(t)
	ctx := context.Background()

	r.Dispatch(ctx, viewerMsg("!metar KJFK"))
	if got := msgr.lines[0].text; !strings.Contains(got, "Weather data systems offline") {
		t.Errorf("metar reply = %q", got)
	}

	clock.Advance(time.Minute)
	r.Dispatch(ctx, viewerMsg("!ttsstatus"))
	if got := msgr.lines[1].text; got != "TTS systems offline. Await reactivation." {
		t.Errorf("ttsstatus reply = %q", got)
	}

	clock.Advance(time.Minute)
	r.Dispatch(ctx, viewerMsg("!status"))
	if got := msgr.lines[2].text; !strings.Contains(got, "No active flight simulation detected") {
		t.Errorf("status reply = %q", got)
	}

	clock.Advance(time.Minute)
	r.Dispatch(ctx, modMsg("!addalert landing Gear down."))
	if got := msgr.lines[3].text; got != "Alert storage offline. Database systems unavailable. Comply." {
		t.Errorf("addalert reply = %q", got)
	}
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	r, msgr, _ := newTestRegistry(t)
	r.register("explode", "Panics.", 0, Permission{}, func(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
		panic("boom")
	})
	r.Dispatch(context.Background(), viewerMsg("!explode"))
	if got := msgr.lines[0].text; got != "Command execution failed. Please try again later." {
		t.Errorf("reply = %q", got)
	}
}

func TestAuditHookInvoked(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	var auditedCmd, auditedArgs string
	r.Deps.Audit = func(ctx context.Context, msg *chat.Message, command, args string) {
		auditedCmd, auditedArgs = command, args
	}
	r.Dispatch(context.Background(), viewerMsg("!say cleared for departure"))
	if auditedCmd != "say" || auditedArgs != "cleared for departure" {
		t.Errorf("audit = (%q, %q)", auditedCmd, auditedArgs)
	}
}
