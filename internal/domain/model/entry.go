package model

import "sort"

// Micropub property vocabulary used by the field plans.
const (
	PropType        = "h"
	PropName        = "name"
	PropSummary     = "summary"
	PropContent     = "content"
	PropPublished   = "published"
	PropCategory    = "category"
	PropInReplyTo   = "in-reply-to"
	PropLikeOf      = "like-of"
	PropRepostOf    = "repost-of"
	PropPhoto       = "photo"
	PropSyndicateTo = "mp-syndicate-to"
	PropRSVP        = "rsvp"
)

// Media is a binary attachment destined for a multipart create request.
// Bytes empty means the value is only a URL and is sent as a plain
// form property instead.
type Media struct {
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	URL         string `json:"url,omitempty"`
	Bytes       []byte `json:"bytes,omitempty"`
}

// Binary reports whether the media carries request-body payload.
func (m *Media) Binary() bool { return m != nil && len(m.Bytes) > 0 }

// Draft is the in-progress property map a field-collection dialog
// assembles before submission. Scalars and lists are kept apart so the
// wire encoding and the update patch envelope can tell them apart.
type Draft struct {
	Scalar map[string]string   `json:"scalar,omitempty"`
	List   map[string][]string `json:"list,omitempty"`
	Photo  *Media              `json:"photo,omitempty"`
}

func NewDraft(entryType string) Draft {
	d := Draft{}
	if entryType != "" {
		d.Set(PropType, entryType)
	}
	return d
}

func (d *Draft) Set(key, val string) {
	if d.Scalar == nil {
		d.Scalar = map[string]string{}
	}
	d.Scalar[key] = val
}

func (d *Draft) SetList(key string, vals []string) {
	if d.List == nil {
		d.List = map[string][]string{}
	}
	d.List[key] = vals
}

func (d *Draft) Get(key string) string {
	return d.Scalar[key]
}

// Has reports whether the property is present at all, either as a
// scalar, a list, or (for the photo property) an attachment.
func (d *Draft) Has(key string) bool {
	if _, ok := d.Scalar[key]; ok {
		return true
	}
	if _, ok := d.List[key]; ok {
		return true
	}
	return key == PropPhoto && d.Photo != nil
}

// HasBinary reports whether any property value is a binary attachment;
// this alone decides multipart versus form encoding.
func (d *Draft) HasBinary() bool { return d.Photo.Binary() }

// Keys returns every present property name, sorted for stable output.
func (d *Draft) Keys() []string {
	keys := make([]string, 0, len(d.Scalar)+len(d.List)+1)
	for k := range d.Scalar {
		keys = append(keys, k)
	}
	for k := range d.List {
		keys = append(keys, k)
	}
	if d.Photo != nil {
		keys = append(keys, PropPhoto)
	}
	sort.Strings(keys)
	return keys
}

// Empty reports whether nothing beyond the entry type has been set.
func (d *Draft) Empty() bool {
	if d.Photo != nil || len(d.List) > 0 {
		return false
	}
	for k := range d.Scalar {
		if k != PropType {
			return false
		}
	}
	return true
}
