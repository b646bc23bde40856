package transcode

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/dkeye/WatchParty/internal/domain"
)

const maxRoomKeyLen = 32

// roomKey turns a client room id into a file name safe token.
func roomKey(id domain.RoomID) string {
	var b strings.Builder
	for _, r := range string(id) {
		if b.Len() >= maxRoomKeyLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "room"
	}
	return b.String()
}

func segmentPrefix(room domain.RoomID, jobID string) string {
	short := strings.ReplaceAll(jobID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return roomKey(room) + "-" + short + "-"
}

// segmentPattern is the encoder output template for a prefix.
func segmentPattern(dir, prefix, ext string) string {
	return filepath.Join(dir, prefix+"%03d."+ext)
}

type segment struct {
	name  string
	index int
}

// listSegments returns the files in dir produced for prefix, ordered by segment number.
func listSegments(fs afero.Fs, dir, prefix, ext string) ([]string, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read segment dir: %w", err)
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `(\d+)\.` + regexp.QuoteMeta(ext) + `$`)
	found := make([]segment, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(info.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		found = append(found, segment{name: info.Name(), index: n})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].index < found[j].index })
	out := make([]string, len(found))
	for i, s := range found {
		out[i] = s.name
	}
	return out, nil
}

// segmentURLs maps file names to the public /videos/ URLs clients fetch.
func segmentURLs(base string, names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = base + "/videos/" + url.PathEscape(name)
	}
	return out
}
