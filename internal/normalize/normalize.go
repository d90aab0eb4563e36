// Package normalize turns raw multi-endpoint API payloads into the
// relational records the store persists.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rbeswick/thingsweep/internal/store"
)

// ErrNoCreator is returned when the primary payload is missing or its
// creator sub-object is null. Such things are unfetchable and produce
// no records.
var ErrNoCreator = errors.New("primary payload missing creator")

// ThingPayload is the primary endpoint response. Pointer fields keep
// absent keys distinguishable from zero values.
type ThingPayload struct {
	ID                int64             `json:"id"`
	Name              *string           `json:"name"`
	Thumbnail         *string           `json:"thumbnail"`
	PublicURL         *string           `json:"public_url"`
	Added             *string           `json:"added"`
	Modified          *string           `json:"modified"`
	IsWIP             *bool             `json:"is_wip"`
	IsFeatured        *bool             `json:"is_featured"`
	IsNSFW            *bool             `json:"is_nsfw"`
	LikeCount         *int64            `json:"like_count"`
	CollectCount      *int64            `json:"collect_count"`
	CommentCount      *int64            `json:"comment_count"`
	Description       *string           `json:"description"`
	Instructions      *string           `json:"instructions"`
	Details           *string           `json:"details"`
	License           *string           `json:"license"`
	AllowsDerivatives *bool             `json:"allows_derivatives"`
	FileCount         *int64            `json:"file_count"`
	PrintHistoryCount *int64            `json:"print_history_count"`
	DownloadCount     *int64            `json:"download_count"`
	ViewCount         *int64            `json:"view_count"`
	RemixCount        *int64            `json:"remix_count"`
	MakeCount         *int64            `json:"make_count"`
	RootCommentCount  *int64            `json:"root_comment_count"`
	IsDerivative      *bool             `json:"is_derivative"`
	CanComment        *bool             `json:"can_comment"`
	Creator           *CreatorPayload   `json:"creator"`
	Ancestors         []AncestorPayload `json:"ancestors"`
	Tags              []TagPayload      `json:"tags"`
}

// CreatorPayload is the creator sub-object of the primary payload.
type CreatorPayload struct {
	ID               int64   `json:"id"`
	Name             *string `json:"name"`
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
	PublicURL        *string `json:"public_url"`
	CountOfFollowers *int64  `json:"count_of_followers"`
	CountOfFollowing *int64  `json:"count_of_following"`
	CountOfDesigns   *int64  `json:"count_of_designs"`
	AcceptsTips      *bool   `json:"accepts_tips"`
	Location         *string `json:"location"`
}

// AncestorPayload is one entry of the primary payload's ancestors array.
type AncestorPayload struct {
	ID int64 `json:"id"`
}

// TagPayload is one entry of the primary payload's tags array.
type TagPayload struct {
	Name        string  `json:"name"`
	Tag         *string `json:"tag"`
	AbsoluteURL *string `json:"absolute_url"`
	Count       *int64  `json:"count"`
}

// ImagePayload is one entry of the images endpoint response.
type ImagePayload struct {
	ID int64 `json:"id"`
}

// FilePayload is one entry of the files endpoint response.
type FilePayload struct {
	ID            int64  `json:"id"`
	DownloadCount *int64 `json:"download_count"`
}

// LikePayload is one entry of the likes endpoint response.
type LikePayload struct {
	ID int64 `json:"id"`
}

// CategoryPayload is one entry of the categories payload.
type CategoryPayload struct {
	ID    int64   `json:"id"`
	Name  *string `json:"name"`
	Count *int64  `json:"count"`
	Slug  *string `json:"slug"`
}

// Payloads bundles the five logical payloads fetched for one thing.
// Any payload may be nil when its fetch failed or returned nothing.
type Payloads struct {
	Thing      *ThingPayload
	Images     []ImagePayload
	Files      []FilePayload
	Likes      []LikePayload
	Categories []CategoryPayload
}

// DecodeThing parses a primary payload body. A nil body yields a nil
// payload.
func DecodeThing(body json.RawMessage) (*ThingPayload, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var p ThingPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode thing payload: %w", err)
	}
	return &p, nil
}

// DecodeList parses an array-shaped auxiliary payload body. A nil body
// yields a nil slice.
func DecodeList[T any](body json.RawMessage) ([]T, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode list payload: %w", err)
	}
	return out, nil
}

// Normalizer derives relational records from raw payloads.
type Normalizer struct {
	log *zap.Logger
}

// New creates a Normalizer.
func New(log *zap.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// Normalize merges one thing's payloads into entity records. The
// primary payload must be present with a non-null creator; otherwise
// ErrNoCreator is returned and nothing is produced.
func (n *Normalizer) Normalize(p *Payloads, accessed time.Time) (*store.Records, error) {
	if p.Thing == nil || p.Thing.Creator == nil {
		return nil, ErrNoCreator
	}
	t := p.Thing

	rec := &store.Records{
		Creator: store.Creator{
			ID:               t.Creator.ID,
			Name:             nullableStr(t.Creator.Name),
			FirstName:        nullableStr(t.Creator.FirstName),
			LastName:         nullableStr(t.Creator.LastName),
			PublicURL:        nullableStr(t.Creator.PublicURL),
			CountOfFollowers: t.Creator.CountOfFollowers,
			CountOfFollowing: t.Creator.CountOfFollowing,
			CountOfDesigns:   t.Creator.CountOfDesigns,
			AcceptsTips:      t.Creator.AcceptsTips,
			Location:         nullableStr(t.Creator.Location),
		},
		Thing: store.Thing{
			ID:                   t.ID,
			Name:                 nullableStr(t.Name),
			Thumbnail:            nullableStr(t.Thumbnail),
			PublicURL:            nullableStr(t.PublicURL),
			Added:                nullableStr(t.Added),
			Modified:             nullableStr(t.Modified),
			IsWIP:                t.IsWIP,
			IsFeatured:           t.IsFeatured,
			IsNSFW:               t.IsNSFW,
			LikeCount:            t.LikeCount,
			CollectCount:         t.CollectCount,
			CommentCount:         t.CommentCount,
			Description:          nullableStr(t.Description),
			Instructions:         nullableStr(t.Instructions),
			Details:              nullableStr(t.Details),
			License:              nullableStr(t.License),
			AllowsDerivatives:    t.AllowsDerivatives,
			FileCount:            t.FileCount,
			PrintHistoryCount:    t.PrintHistoryCount,
			DownloadCount:        t.DownloadCount,
			ViewCount:            t.ViewCount,
			RemixCount:           t.RemixCount,
			MakeCount:            t.MakeCount,
			RootCommentCount:     t.RootCommentCount,
			IsDerivative:         t.IsDerivative,
			CanComment:           t.CanComment,
			AddedImagesCount:     int64(len(p.Images) - len(p.Files)),
			LikesCount:           int64(len(p.Likes)),
			LikesIDs:             serializeIDs(likeIDs(p.Likes)),
			AverageDownloadCount: n.averageDownloadCount(t.ID, p.Files),
			Tags:                 serializeStrings(tagValues(t.Tags)),
			AncestorIDs:          serializeIDs(ancestorIDs(t.Ancestors)),
			CreatorID:            t.Creator.ID,
			Accessed:             accessed.UTC().Format(time.RFC3339),
			Categories:           serializeStrings(categoryNames(p.Categories)),
		},
	}

	for _, tag := range t.Tags {
		rec.Tags = append(rec.Tags, store.Tag{
			Name:        tag.Name,
			Tag:         nullableStr(tag.Tag),
			AbsoluteURL: nullableStr(tag.AbsoluteURL),
			Count:       tag.Count,
		})
	}
	for _, cat := range p.Categories {
		rec.Categories = append(rec.Categories, store.Category{
			ID:    cat.ID,
			Name:  nullableStr(cat.Name),
			Count: cat.Count,
			Slug:  nullableStr(cat.Slug),
		})
	}

	return rec, nil
}

// averageDownloadCount is the truncating integer mean of per-file
// download counts, 0 when no files. Entries without a numeric count are
// flagged and excluded from the mean rather than coerced to zero.
func (n *Normalizer) averageDownloadCount(thingID int64, files []FilePayload) int64 {
	var sum, valid int64
	for _, f := range files {
		if f.DownloadCount == nil {
			n.log.Warn("file without download count",
				zap.Int64("thing_id", thingID),
				zap.Int64("file_id", f.ID),
			)
			continue
		}
		sum += *f.DownloadCount
		valid++
	}
	if valid == 0 {
		return 0
	}
	return sum / valid
}

// nullableStr collapses absent keys and empty strings into SQL NULL.
func nullableStr(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// serializeIDs marshals an id list, or NULL when the list is empty.
func serializeIDs(ids []int64) *string {
	if len(ids) == 0 {
		return nil
	}
	b, _ := json.Marshal(ids)
	s := string(b)
	return &s
}

// serializeStrings marshals a string list, or NULL when the list is empty.
func serializeStrings(vals []string) *string {
	if len(vals) == 0 {
		return nil
	}
	b, _ := json.Marshal(vals)
	s := string(b)
	return &s
}

func likeIDs(likes []LikePayload) []int64 {
	out := make([]int64, 0, len(likes))
	for _, l := range likes {
		out = append(out, l.ID)
	}
	return out
}

func ancestorIDs(ancestors []AncestorPayload) []int64 {
	out := make([]int64, 0, len(ancestors))
	for _, a := range ancestors {
		out = append(out, a.ID)
	}
	return out
}

// tagValues collects the tag field of each entry, the value the thing
// row serializes. Entries without one fall back to the display name.
func tagValues(tags []TagPayload) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t.Tag != nil && *t.Tag != "" {
			out = append(out, *t.Tag)
			continue
		}
		out = append(out, t.Name)
	}
	return out
}

func categoryNames(cats []CategoryPayload) []string {
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		if c.Name != nil {
			out = append(out, *c.Name)
		}
	}
	return out
}
