package realtime

import (
	"github.com/tidwall/gjson"
)

// SeenShape names which accepted form a dm_seen payload arrived in.
type SeenShape int

const (
	SeenBare        SeenShape = iota + 1 // "userId"
	SeenTo                               // {"to": "userId"}
	SeenOtherUserID                      // {"otherUserId": "userId"}
	SeenUserID                           // {"userId": "userId"}
)

// SeenTarget is a normalised dm_seen payload.
type SeenTarget struct {
	Shape       SeenShape
	OtherUserID string
}

// objectSeenFields are probed in order; the first non-empty one wins.
var objectSeenFields = []struct {
	path  string
	shape SeenShape
}{
	{"to", SeenTo},
	{"otherUserId", SeenOtherUserID},
	{"userId", SeenUserID},
}

// ParseSeenTarget normalises the raw JSON of a dm_seen payload.
func ParseSeenTarget(raw []byte) (SeenTarget, error) {
	res := gjson.ParseBytes(raw)
	switch {
	case res.Type == gjson.String:
		if res.Str == "" {
			break
		}
		return SeenTarget{Shape: SeenBare, OtherUserID: res.Str}, nil
	case res.IsObject():
		for _, f := range objectSeenFields {
			if v := res.Get(f.path); v.Exists() && v.String() != "" {
				return SeenTarget{Shape: f.shape, OtherUserID: v.String()}, nil
			}
		}
	}
	return SeenTarget{}, invalid("dm_seen", "expected a user id or an object with to, otherUserId or userId")
}
