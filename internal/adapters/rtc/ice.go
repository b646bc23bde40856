// Package rtc holds the WebRTC pieces the server needs even though media
// never passes through it: the ICE server list handed to clients and
// inspection of relayed handshake payloads for logging.
package rtc

import (
	"encoding/json"
	"strings"

	"github.com/pion/webrtc/v4"
)

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// ICEServers groups configured URLs into one ICE server entry per URL.
// Blank entries are skipped; an empty result falls back to the default STUN server.
func ICEServers(urls []string) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || !isICEURL(u) {
			continue
		}
		out = append(out, webrtc.ICEServer{URLs: []string{u}})
	}
	if len(out) == 0 {
		return DefaultWebRTCConfig().ICEServers
	}
	return out
}

func isICEURL(u string) bool {
	lower := strings.ToLower(u)
	for _, scheme := range []string{"stun:", "stuns:", "turn:", "turns:"} {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// Describe summarizes a relayed offer/answer/candidate payload. It never
// rejects anything; payloads are forwarded verbatim whatever it returns.
func Describe(payload json.RawMessage) string {
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(payload, &sd); err == nil && sd.SDP != "" {
		return "sdp:" + sd.Type.String()
	}
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &ci); err == nil && ci.Candidate != "" {
		return "candidate"
	}
	return "opaque"
}
