package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/grab-your-parachutes/overlord-bot/chat"
	"github.com/grab-your-parachutes/overlord-bot/navmap"
	"github.com/grab-your-parachutes/overlord-bot/telemetry"
	"github.com/grab-your-parachutes/overlord-bot/weather"
)

var (
	errBuiltinCollision = errors.New("cannot override builtin command")
	errNotFound         = errors.New("command not found")
)

func (r *Registry) registerBuiltins() {
	modOnly := Permission{ModOnly: true}

	r.register("status", "Get current flight status.", 5*time.Second, Permission{}, cmdFlightStatus)
	r.register("flightstatus", "Get current flight status.", 5*time.Second, Permission{}, cmdFlightStatus)
	r.register("brief", "Get a brief flight status update.", 5*time.Second, Permission{}, cmdBrief)
	r.register("weather", "Get current simulator weather.", 5*time.Second, Permission{}, cmdWeather)
	r.register("metar", "Retrieve METAR information for an ICAO code.", 5*time.Second, Permission{}, cmdMetar)
	r.register("airport", "Get airport information by ICAO ident.", 5*time.Second, Permission{}, cmdAirport)
	r.register("location", "Get the aircraft's current position.", 5*time.Second, Permission{}, cmdLocation)
	r.register("stats", "Get bot and command statistics.", 10*time.Second, Permission{}, cmdStats)
	r.register("fact", "Get an aviation fact on demand.", 30*time.Second, Permission{}, cmdFact)
	r.register("say", "Make the bot say something.", 5*time.Second, Permission{}, cmdSay)
	r.register("help", "Display help information.", 5*time.Second, Permission{}, cmdHelp)

	r.register("timeout", "Timeout a user.", 30*time.Second, modOnly, cmdTimeout)
	r.register("clearchat", "Clear chat messages.", 30*time.Second, modOnly, cmdClearChat)
	r.register("settitle", "Set the stream title.", 30*time.Second, modOnly, cmdSetTitle)
	r.register("setgame", "Set the stream game/category.", 30*time.Second, modOnly, cmdSetGame)
	r.register("addalert", "Add a custom alert.", 30*time.Second, modOnly, cmdAddAlert)
	r.register("alert", "Trigger a saved alert.", 5*time.Second, Permission{}, cmdAlert)

	r.register("addcom", "Add a custom command.", 30*time.Second, modOnly, cmdAddCom)
	r.register("delcom", "Delete a custom command.", 30*time.Second, modOnly, cmdDelCom)
	r.register("editcom", "Edit a custom command.", 30*time.Second, modOnly, cmdEditCom)
	r.register("alias", "Add a command alias.", 30*time.Second, modOnly, cmdAlias)

	r.register("tts", "Adjust TTS voice, speed or volume.", 5*time.Second, Permission{}, cmdTTSSettings)
	r.register("ttssettings", "Adjust TTS voice, speed or volume.", 30*time.Second, Permission{}, cmdTTSSettings)
	r.register("ttsstatus", "Get TTS status.", 5*time.Second, Permission{}, cmdTTSStatus)
	r.register("ttsqueue", "Manage the TTS queue.", 5*time.Second, Permission{}, cmdTTSQueue)
}

func (r *Registry) persona(line string) string {
	if r.Deps.Personality == nil {
		return line
	}
	return r.Deps.Personality.Format(line)
}

// simInfo returns telemetry when the simulator feed is configured,
// reachable, and reporting an active flight.
func (r *Registry) simInfo(ctx context.Context) (*navmap.SimInfo, bool) {
	if r.Deps.Sim == nil {
		return nil, false
	}
	info, err := r.Deps.Sim.SimInfo(ctx)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("sim info unavailable", slog.Any("error", err))
		return nil, false
	}
	return info, info.Active
}

func cmdFlightStatus(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	info, ok := r.simInfo(ctx)
	if !ok {
		r.send(msg.Channel, r.persona("No active flight simulation detected. Please ensure the simulation is running."), false)
		return
	}
	r.send(msg.Channel, navmap.FormatFlightData(info), false)
	r.speak(navmap.FormatBrief(info), 0)
}

func cmdBrief(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	info, ok := r.simInfo(ctx)
	if !ok {
		r.send(msg.Channel, r.persona("Flight systems inactive. Standby."), false)
		return
	}
	status := navmap.FormatBrief(info)
	r.send(msg.Channel, r.persona(status), false)
	r.speak(status, 0)
}

func cmdWeather(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	info, ok := r.simInfo(ctx)
	if !ok {
		r.send(msg.Channel, r.persona("Weather systems offline. Await reactivation."), false)
		return
	}
	report := navmap.FormatWeather(info)
	r.send(msg.Channel, r.persona("Weather Report: "+report), false)
	r.speak(report, 0)
}

func cmdMetar(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	if len(args) == 0 {
		r.send(msg.Channel, fmt.Sprintf("Usage: %smetar <ICAO_CODE>", r.Prefix), false)
		return
	}
	if r.Deps.Metar == nil {
		r.send(msg.Channel, r.persona("Weather data systems offline. Await reactivation."), false)
		return
	}
	icao := strings.ToUpper(args[0])
	m, err := r.Deps.Metar.GetMetar(ctx, icao)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("metar fetch failed", slog.String("icao", icao), slog.Any("error", err))
		r.send(msg.Channel, fmt.Sprintf("Could not retrieve METAR for %s.", icao), false)
		return
	}
	r.send(msg.Channel, weather.FormatMetar(m), true)
}

func cmdAirport(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	if len(args) == 0 {
		r.send(msg.Channel, fmt.Sprintf("Usage: %sairport <ICAO>. Provide airport identifier. Comply.", r.Prefix), false)
		return
	}
	if r.Deps.Sim == nil {
		r.send(msg.Channel, r.persona("Navigation data systems offline. Await reactivation."), false)
		return
	}
	icao := strings.ToUpper(args[0])
	a, err := r.Deps.Sim.AirportInfo(ctx, icao)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("airport lookup failed", slog.String("icao", icao), slog.Any("error", err))
		r.send(msg.Channel, r.persona(fmt.Sprintf("No data found for airport %s. Verify identifier. Comply.", icao)), false)
		return
	}
	response := r.persona(navmap.FormatAirport(a))
	r.send(msg.Channel, response, true)
}

func cmdLocation(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	info, ok := r.simInfo(ctx)
	if !ok {
		r.send(msg.Channel, "Flight simulator is not active.", false)
		return
	}
	if info.Position.Lat == 0 && info.Position.Lon == 0 {
		r.send(msg.Channel, "Location data not available.", false)
		return
	}
	r.send(msg.Channel, navmap.FormatLocation(info), false)
}

func cmdStats(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	totalUses, mostUsed, customCount, aliasCount := r.Stats()

	flightActive := false
	var info *navmap.SimInfo
	if r.Deps.Sim != nil {
		if si, err := r.Deps.Sim.SimInfo(ctx); err == nil && si.Active {
			flightActive = true
			info = si
		}
	}

	stateWord := "Inactive"
	if flightActive {
		stateWord = "Active"
	}
	stats := fmt.Sprintf(
		"System Statistics Report: Total Commands Processed: %d | Most Used Command: %s | Custom Commands: %d | Command Aliases: %d | Flight Simulation: %s | Uptime: %s",
		totalUses, mostUsed, customCount, aliasCount, stateWord, r.uptimeString(ctx))
	if flightActive {
		altFt := int(info.IndicatedAltitude + 0.5)
		gsKts := int(navmap.Knots(info.GroundSpeed) + 0.5)
		stats += fmt.Sprintf(" | Current Altitude: %d ft | Ground Speed: %d kts", altFt, gsKts)
	}
	r.send(msg.Channel, r.persona(stats), false)

	brief := fmt.Sprintf("System status: %d commands processed. Flight systems %s.", totalUses, strings.ToLower(stateWord))
	r.speak(brief, 0)
}

func cmdFact(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	if r.Deps.Facts == nil {
		r.send(msg.Channel, "Unable to retrieve an aviation fact at this time.", false)
		return
	}
	fact, err := r.Deps.Facts.AviationFact(ctx)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("fact generation failed", slog.Any("error", err))
		r.send(msg.Channel, "Unable to retrieve an aviation fact at this time.", false)
		return
	}
	r.send(msg.Channel, fact, true)
}

func cmdSay(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	if len(args) == 0 {
		r.send(msg.Channel, fmt.Sprintf("Usage: %ssay <message>. Provide message content. Comply.", r.Prefix), false)
		return
	}
	text := r.persona(strings.Join(args, " "))
	r.send(msg.Channel, text, true)
}

func cmdHelp(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	if len(args) > 0 {
		name := strings.ToLower(args[0])
		r.mu.Lock()
		b, isBuiltin := r.builtins[name]
		custom, isCustom := r.customs[name]
		r.mu.Unlock()
		switch {
		case isBuiltin:
			r.send(msg.Channel, fmt.Sprintf("Command %s%s: %s Comply.", r.Prefix, name, b.help), false)
		case isCustom:
			r.send(msg.Channel, fmt.Sprintf("Custom command %s%s response: %s", r.Prefix, name, custom), false)
		default:
			r.send(msg.Channel, fmt.Sprintf("Command %s%s not found. Verify and retry. Comply.", r.Prefix, name), false)
		}
		return
	}
	r.send(msg.Channel, fmt.Sprintf(
		"Available commands: %s. Use %shelp <command> for details. Use them wisely, minions. Comply.",
		strings.Join(r.CommandNames(), ", "), r.Prefix), false)
}

func cmdTimeout(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	if len(args) < 2 {
		r.send(msg.Channel, fmt.Sprintf("Usage: %stimeout <username> <duration_in_seconds>. Provide proper parameters. Comply.", r.Prefix), false)
		return
	}
	username := strings.ToLower(args[0])
	duration, err := strconv.Atoi(args[1])
	if err != nil || duration <= 0 {
		r.send(msg.Channel, "Invalid duration specified. Provide a valid number of seconds. Comply.", false)
		return
	}
	r.send(msg.Channel, fmt.Sprintf("/timeout %s %d", username, duration), false)
	r.send(msg.Channel, r.persona(fmt.Sprintf("User %s has been silenced for %d seconds.", username, duration)), false)
}

func cmdClearChat(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	r.send(msg.Channel, "/clear", false)
	r.send(msg.Channel, r.persona("Chat purge initiated. Cleansing complete."), false)
}

func cmdSetTitle(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	if len(args) == 0 {
		r.send(msg.Channel, fmt.Sprintf("Usage: %ssettitle <title>. Provide proper parameters. Comply.", r.Prefix), false)
		return
	}
	title := strings.Join(args, " ")
	r.send(msg.Channel, fmt.Sprintf("Stream title updated to: %s. Compliance acknowledged.", title), false)
}

func cmdSetGame(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	if len(args) == 0 {
		r.send(msg.Channel, fmt.Sprintf("Usage: %ssetgame <game>. Provide proper parameters. Comply.", r.Prefix), false)
		return
	}
	game := strings.Join(args, " ")
	r.send(msg.Channel, fmt.Sprintf("Game category set to: %s. Adjustment recorded.", game), false)
}

func cmdAddAlert(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	if len(args) < 2 {
		r.send(msg.Channel, fmt.Sprintf("Usage: %saddalert <name> <message>. Follow protocol. Comply.", r.Prefix), false)
		return
	}
	if r.Deps.Alerts == nil {
		r.send(msg.Channel, "Alert storage offline. Database systems unavailable. Comply.", false)
		return
	}
	name := strings.ToLower(args[0])
	alertMsg := strings.Join(args[1:], " ")
	if err := r.Deps.Alerts.Save(ctx, name, alertMsg, msg.Username); err != nil {
		telemetry.LoggerWithCorr(ctx).Error("alert save failed", slog.Any("error", err))
		r.send(msg.Channel, "Alert creation failed. Database error detected. Comply.", false)
		return
	}
	r.send(msg.Channel, fmt.Sprintf("Alert '%s' has been added to the database. Protocol updated.", name), false)
}

func cmdAlert(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	if len(args) == 0 {
		r.send(msg.Channel, fmt.Sprintf("Usage: %salert <name>. Specify alert designation. Comply.", r.Prefix), false)
		return
	}
	name := strings.ToLower(args[0])

	if r.Deps.Alerts != nil {
		stored, ok, err := r.Deps.Alerts.Get(ctx, name)
		if err != nil {
			telemetry.LoggerWithCorr(ctx).Error("alert lookup failed", slog.Any("error", err))
			r.send(msg.Channel, "Alert retrieval failed. System malfunction detected. Comply.", false)
			return
		}
		if ok {
			r.send(msg.Channel, stored, true)
			return
		}
	}
	if r.Deps.Personality != nil {
		if builtin, ok := r.Deps.Personality.Alert(name); ok {
			r.send(msg.Channel, r.persona(builtin), true)
			return
		}
	}
	r.send(msg.Channel, fmt.Sprintf("Alert '%s' not found in database. Verify and retry. Comply.", name), false)
}

func cmdAddCom(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	if len(args) < 2 {
		r.send(msg.Channel, fmt.Sprintf("Usage: %saddcom [command] [response]. Follow protocol. Comply.", r.Prefix), false)
		return
	}
	name := strings.ToLower(args[0])
	response := strings.Join(args[1:], " ")
	switch err := r.AddCustom(name, response); {
	case errors.Is(err, errBuiltinCollision):
		r.send(msg.Channel, "Cannot override built-in commands. Your attempt has been logged. Comply.", false)
	case err != nil:
		telemetry.LoggerWithCorr(ctx).Error("addcom failed", slog.Any("error", err))
		r.send(msg.Channel, "Command creation failed. Database error detected. Comply.", false)
	default:
		r.send(msg.Channel, fmt.Sprintf("Command %s%s added to database. New protocol established.", r.Prefix, name), false)
	}
}

func cmdDelCom(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	if len(args) == 0 {
		r.send(msg.Channel, fmt.Sprintf("Usage: %sdelcom [command]. Specify target command. Comply.", r.Prefix), false)
		return
	}
	name := strings.ToLower(args[0])
	switch err := r.DeleteCustom(name); {
	case errors.Is(err, errNotFound):
		r.send(msg.Channel, fmt.Sprintf("Command %s%s not found in database. Verify and retry. Comply.", r.Prefix, name), false)
	case err != nil:
		telemetry.LoggerWithCorr(ctx).Error("delcom failed", slog.Any("error", err))
		r.send(msg.Channel, "Command deletion failed. Database error detected. Comply.", false)
	default:
		r.send(msg.Channel, fmt.Sprintf("Command %s%s purged from database. Protocol terminated.", r.Prefix, name), false)
	}
}

func cmdEditCom(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	if len(args) < 2 {
		r.send(msg.Channel, fmt.Sprintf("Usage: %seditcom [command] [new response]. Follow protocol. Comply.", r.Prefix), false)
		return
	}
	name := strings.ToLower(args[0])
	response := strings.Join(args[1:], " ")
	switch err := r.EditCustom(name, response); {
	case errors.Is(err, errNotFound):
		r.send(msg.Channel, fmt.Sprintf("Command %s%s not found. Verify and retry. Comply.", r.Prefix, name), false)
	case err != nil:
		telemetry.LoggerWithCorr(ctx).Error("editcom failed", slog.Any("error", err))
		r.send(msg.Channel, "Command update failed. Database error detected. Comply.", false)
	default:
		r.send(msg.Channel, fmt.Sprintf("Command %s%s updated. Protocol modification complete.", r.Prefix, name), false)
	}
}

func cmdAlias(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	if len(args) < 2 {
		r.send(msg.Channel, fmt.Sprintf("Usage: %salias [new command] [existing command]. Follow protocol. Comply.", r.Prefix), false)
		return
	}
	alias := strings.ToLower(args[0])
	target := strings.ToLower(args[1])
	switch err := r.AddAlias(alias, target); {
	case errors.Is(err, errNotFound):
		r.send(msg.Channel, fmt.Sprintf("Command %s%s not found. Verify and retry. Comply.", r.Prefix, target), false)
	case err != nil:
		telemetry.LoggerWithCorr(ctx).Error("alias failed", slog.Any("error", err))
		r.send(msg.Channel, "Alias creation failed. Database error detected. Comply.", false)
	default:
		r.send(msg.Channel, fmt.Sprintf("Alias %s%s -> %s%s established. Protocol updated.", r.Prefix, alias, r.Prefix, target), false)
	}
}

func cmdTTSSettings(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	if r.Deps.TTS == nil {
		r.send(msg.Channel, "TTS systems offline. Await reactivation.", false)
		return
	}
	if len(args) < 2 {
		r.send(msg.Channel, fmt.Sprintf("Usage: %stts [voice|speed|volume] [value]. Follow the format. Comply.", r.Prefix), false)
		return
	}
	setting, value := strings.ToLower(args[0]), args[1]
	var err error
	switch setting {
	case "voice":
		err = r.Deps.TTS.UpdateVoice(value)
	case "speed":
		var speed float64
		speed, err = strconv.ParseFloat(value, 64)
		if err != nil {
			r.send(msg.Channel, "Invalid speed value. Please provide a number.", false)
			return
		}
		err = r.Deps.TTS.UpdateSpeed(speed)
	case "volume":
		var volume float64
		volume, err = strconv.ParseFloat(value, 64)
		if err != nil {
			r.send(msg.Channel, "Invalid volume value. Please provide a number.", false)
			return
		}
		err = r.Deps.TTS.UpdateVolume(volume)
	default:
		r.send(msg.Channel, "Invalid setting. Please use 'voice', 'speed', or 'volume'.", false)
		return
	}
	if err != nil {
		r.send(msg.Channel, "TTS update failed. Your inefficiency has been noted. Comply.", false)
		return
	}
	r.send(msg.Channel, fmt.Sprintf("TTS %s updated to %s. Adjustments complete.", setting, value), false)
}

func cmdTTSStatus(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	if r.Deps.TTS == nil {
		r.send(msg.Channel, "TTS systems offline. Await reactivation.", false)
		return
	}
	st := r.Deps.TTS.Status()
	stateWord := "Disabled"
	if st.Enabled {
		stateWord = "Enabled"
	}
	r.send(msg.Channel, fmt.Sprintf(
		"TTS Status: %s | Voice: %s | Speed: %.1f | Volume: %.1f | Queue Size: %d | Messages Processed: %d | Available Voices: %s",
		stateWord, st.Settings.Voice, st.Settings.Speed, st.Settings.Volume,
		st.QueueSize, st.MessagesProcessed, strings.Join(st.AvailableVoices, ", ")), false)
}

func cmdTTSQueue(ctx context.Context, r *Registry, msg *chat.Message, args []string) {
	if r.Deps.TTS == nil {
		r.send(msg.Channel, "TTS systems offline. Await reactivation.", false)
		return
	}
	if len(args) == 0 {
		r.send(msg.Channel, fmt.Sprintf("Usage: %sttsqueue clear", r.Prefix), false)
		return
	}
	if strings.ToLower(args[0]) == "clear" {
		r.Deps.TTS.Clear()
		r.send(msg.Channel, "TTS queue cleared.", false)
		return
	}
	r.send(msg.Channel, fmt.Sprintf("Usage: %sttsqueue clear", r.Prefix), false)
}
