package service

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jose-valero/verification-bot/internal/domain"
	"github.com/jose-valero/verification-bot/internal/infra/metrics"
	"github.com/jose-valero/verification-bot/internal/infra/storage"
)

const (
	keyReviewChannel = "review_channel_id"
	keyVerifiedRole  = "verified_role_id"
	keyAdminRoles    = "admin_role_ids"
	keyUpdatedAt     = "updated_at"
)

// ConfigPatch is a partial update. Nil fields are left untouched; a pointer
// to "" (or to an empty slice) explicitly unsets.
type ConfigPatch struct {
	ReviewChannelID *string
	VerifiedRoleID  *string
	AdminRoleIDs    *[]string

	// Applied after AdminRoleIDs, inside the same write.
	AddAdminRoleIDs    []string
	RemoveAdminRoleIDs []string
}

func (p ConfigPatch) touchesAdmins() bool {
	return p.AdminRoleIDs != nil || len(p.AddAdminRoleIDs) > 0 || len(p.RemoveAdminRoleIDs) > 0
}

type ConfigStore struct {
	doc ConfigDocument
	log *logrus.Entry
	now func() time.Time
}

func NewConfigStore(doc ConfigDocument, log *logrus.Entry) *ConfigStore {
	return &ConfigStore{doc: doc, log: log, now: time.Now}
}

// Get never fails: an unknown guild is a zero config.
func (s *ConfigStore) Get(guildID string) domain.GuildConfig {
	cfg := domain.GuildConfig{GuildID: guildID}
	f, ok := s.doc.Get(guildID)
	if !ok {
		return cfg
	}
	cfg.ReviewChannelID = decodeID(f[keyReviewChannel])
	cfg.VerifiedRoleID = decodeID(f[keyVerifiedRole])
	cfg.AdminRoleIDs = decodeIDs(f[keyAdminRoles])
	cfg.UpdatedAt = decodeTime(f[keyUpdatedAt])
	return cfg
}

// Update merges p into the stored entry and writes the document before returning.
func (s *ConfigStore) Update(guildID string, p ConfigPatch) (domain.GuildConfig, error) {
	err := s.doc.Update(guildID, func(f storage.Fields) error {
		if p.ReviewChannelID != nil {
			setID(f, keyReviewChannel, *p.ReviewChannelID)
		}
		if p.VerifiedRoleID != nil {
			setID(f, keyVerifiedRole, *p.VerifiedRoleID)
		}
		if p.touchesAdmins() {
			admins := decodeIDs(f[keyAdminRoles])
			if p.AdminRoleIDs != nil {
				admins = uniqueIDs(*p.AdminRoleIDs)
			}
			admins = uniqueIDs(append(admins, p.AddAdminRoleIDs...))
			admins = slices.DeleteFunc(admins, func(id string) bool {
				return slices.Contains(p.RemoveAdminRoleIDs, id)
			})
			f[keyAdminRoles] = mustJSON(admins)
		}
		f[keyUpdatedAt] = mustJSON(s.now().UTC().Format(time.RFC3339Nano))
		return nil
	})
	if err != nil {
		metrics.ConfigUpdate("error")
		s.log.WithError(err).WithField("guild", guildID).Error("config write failed")
		return domain.GuildConfig{}, &PersistError{Err: err}
	}
	metrics.ConfigUpdate("ok")
	return s.Get(guildID), nil
}

// Delete drops the guild entry entirely.
func (s *ConfigStore) Delete(guildID string) error {
	if err := s.doc.Delete(guildID); err != nil {
		return &PersistError{Err: err}
	}
	return nil
}

func (s *ConfigStore) IsComplete(guildID string) bool {
	return s.Get(guildID).IsComplete()
}

// IsAuthorizedAdmin: roles ∩ admin roles is non-empty. Empty admin set → false.
func (s *ConfigStore) IsAuthorizedAdmin(roles []string, guildID string) bool {
	return s.Get(guildID).HasAdminRole(roles)
}

// ---------- encoding ----------

func setID(f storage.Fields, key, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		delete(f, key)
		return
	}
	f[key] = mustJSON(id)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err) // strings and string slices always encode
	}
	return b
}

// decodeID accepts a string or a number. Missing, null, "" and 0 are unset.
func decodeID(raw json.RawMessage) string {
	v, ok := decodeScalar(raw)
	if !ok {
		return ""
	}
	return normalizeID(v)
}

func decodeScalar(raw json.RawMessage) (any, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

func normalizeID(v any) string {
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case json.Number:
		s = t.String()
	default:
		return ""
	}
	if s == "0" {
		return ""
	}
	return s
}

// decodeIDs accepts an array of strings/numbers, or the older comma-separated string.
func decodeIDs(raw json.RawMessage) []string {
	v, ok := decodeScalar(raw)
	if !ok {
		return nil
	}
	var ids []string
	switch t := v.(type) {
	case []any:
		for _, it := range t {
			ids = append(ids, normalizeID(it))
		}
	case string:
		ids = strings.Split(t, ",")
	default:
		return nil
	}
	return uniqueIDs(ids)
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

func decodeTime(raw json.RawMessage) time.Time {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
