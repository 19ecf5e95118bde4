package model

import (
	"path"
	"strconv"
	"strings"
)

// RatingRecord is one scored observation. Column names follow the result
// files: audio, name, metric, score, username, plus the optional item.
type RatingRecord struct {
	Audio  string `json:"audio" yaml:"audio"`
	System string `json:"name" yaml:"name"`
	Metric string `json:"metric" yaml:"metric"`
	Score  int    `json:"score" yaml:"score"`
	Rater  string `json:"username" yaml:"username"`
	Item   string `json:"item,omitempty" yaml:"item,omitempty"`
}

// BaseItem is the logical stimulus shared by all systems' renderings: the
// item id when recorded (it keeps speaker groups apart), otherwise the
// audio file stem.
func (r RatingRecord) BaseItem() string {
	if r.Item != "" {
		return r.Item
	}
	return Stem(r.Audio)
}

// SubmissionKey identifies one persisted batch. Paged surveys key on
// (survey, rater, page); unpaged ones on (survey, rater).
type SubmissionKey struct {
	Survey string
	Rater  string
	Page   int
	Paged  bool
}

// FileName returns the result file name for the key with the given
// extension (without the leading dot).
func (k SubmissionKey) FileName(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if k.Paged {
		return k.Rater + "_" + strconv.Itoa(k.Page) + "." + ext
	}
	return k.Rater + "." + ext
}

// RelPath is the slash-separated location of the batch below the results
// directory. Each survey keeps its own sub-directory so the same rater
// never collides across surveys.
func (k SubmissionKey) RelPath(ext string) string {
	if k.Survey == "" {
		return k.FileName(ext)
	}
	return path.Join(k.Survey, k.FileName(ext))
}

// SubmissionBatch is everything one rater submitted in one form.
type SubmissionBatch struct {
	Key     SubmissionKey
	Records []RatingRecord
}
