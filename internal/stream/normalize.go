package stream

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const manifestSuffix = "/manifest/video.m3u8"

// Update is the canonical form of a status report. Webhook deliveries and
// poll responses both reduce to this, so the two paths cannot drift apart.
type Update struct {
	AssetID         string
	Ready           bool
	PlaybackID      string
	DurationSeconds int
	Meta            map[string]string
}

// extractor tries to read one historical payload shape. Returning false
// means the shape did not match and the next one is tried. Adding a third
// shape is a pure addition to the list.
type extractor func(payload map[string]any) (Update, bool)

var extractors = []extractor{extractRootShape, extractEventShape}

// Normalize reduces a decoded notification body to an Update.
//
// Two shapes are tolerated: a root-level object with uid/id, a status.state
// field and an optional playback object; and an event wrapper with a type
// field and a nested video (or data) object carrying the same sub-fields.
func Normalize(payload map[string]any) (Update, error) {
	for _, extract := range extractors {
		if upd, ok := extract(payload); ok {
			return upd, nil
		}
	}
	return Update{}, ErrUnrecognizedPayload
}

func extractRootShape(payload map[string]any) (Update, bool) {
	uid := firstString(payload, "uid", "id")
	if uid == "" {
		return Update{}, false
	}

	upd := Update{AssetID: uid, Meta: metaField(payload)}
	if status, ok := payload["status"].(map[string]any); ok {
		upd.Ready = firstString(status, "state") == "ready"
	}
	upd.PlaybackID = playbackIDFrom(payload["playback"])
	upd.DurationSeconds = durationSeconds(payload["duration"])
	return upd, true
}

func extractEventShape(payload map[string]any) (Update, bool) {
	nested, ok := payload["video"].(map[string]any)
	if !ok {
		nested, ok = payload["data"].(map[string]any)
	}
	if !ok {
		return Update{}, false
	}

	uid := firstString(nested, "uid", "id")
	if uid == "" {
		return Update{}, false
	}
	// Some deliveries append query junk to the uid.
	if i := strings.IndexByte(uid, '?'); i >= 0 {
		uid = uid[:i]
	}

	upd := Update{AssetID: uid, Meta: metaField(nested)}

	// Either signal is sufficient: the event type, or a nested status.state.
	upd.Ready = firstString(payload, "type") == "video.ready"
	if !upd.Ready {
		if status, ok := nested["status"].(map[string]any); ok {
			upd.Ready = firstString(status, "state") == "ready"
		}
	}

	upd.PlaybackID = playbackIDFrom(nested["playback"])
	if upd.PlaybackID == "" {
		upd.PlaybackID = firstString(nested, "playbackId")
	}
	upd.DurationSeconds = durationSeconds(nested["duration"])
	return upd, true
}

// playbackIDFrom handles the shapes the platform has used for the playback
// object: a flat map with an id-like key, a map whose hls key nests an
// object with an id, or a map whose hls key holds a full manifest URL.
func playbackIDFrom(v any) string {
	pb, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	switch hls := pb["hls"].(type) {
	case map[string]any:
		if id := firstString(hls, "id"); id != "" {
			return id
		}
	case string:
		if id := playbackIDFromManifestURL(hls); id != "" {
			return id
		}
	}
	return firstString(pb, "id", "uid", "playbackId")
}

// playbackIDFromManifestURL pulls the path segment immediately preceding the
// fixed manifest filename out of a delivery URL.
func playbackIDFromManifestURL(u string) string {
	i := strings.Index(u, manifestSuffix)
	if i < 0 {
		return ""
	}
	head := strings.TrimRight(u[:i], "/")
	if j := strings.LastIndexByte(head, '/'); j >= 0 {
		head = head[j+1:]
	}
	return head
}

// durationSeconds accepts any numeric duration and rounds to the nearest
// second. Absence (or anything unparseable) yields 0, which means "unknown"
// downstream, never "zero-length".
func durationSeconds(v any) int {
	var d float64
	switch n := v.(type) {
	case float64:
		d = n
	case int:
		d = float64(n)
	case int64:
		d = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		d = parsed
	default:
		return 0
	}
	if d <= 0 {
		return 0
	}
	return int(math.Round(d))
}

func metaField(m map[string]any) map[string]string {
	raw, ok := m["meta"].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch s := v.(type) {
		case string:
			out[k] = s
		case float64:
			out[k] = strconv.FormatFloat(s, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(s)
		default:
			out[k] = fmt.Sprintf("%v", s)
		}
	}
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
