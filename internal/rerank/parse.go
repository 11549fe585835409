package rerank

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/DarthPollos/CV-Compare-Project/internal/candidates"
)

const outputSchema = `{
	"type": "array",
	"items": {"type": "object"}
}`

var (
	arrayPattern = regexp.MustCompile(`(?s)\[.*\]`)
	schemaLoader = gojsonschema.NewStringLoader(outputSchema)

	idKeys            = []string{"id", "candidate_id", "cv_id"}
	justificationKeys = []string{"justification", "justificación", "justificacion", "reason", "reasons"}
	scoreKeys         = []string{"score", "puntuación", "puntuacion"}
)

// parse turns raw LLM output into ranking items.
func parse(raw string) ([]map[string]any, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, errors.New("empty output")
	}

	if !strings.HasPrefix(cleaned, "[") && !strings.HasPrefix(cleaned, "{") {
		found := arrayPattern.FindString(cleaned)
		if found == "" {
			return nil, errors.New("no json array in output")
		}
		cleaned = found
	}

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}

	if obj, ok := data.(map[string]any); ok {
		data = unwrap(obj)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validate output: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("output does not match schema: %s", strings.Join(msgs, "; "))
	}

	arr := data.([]any)
	items := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		items = append(items, v.(map[string]any))
	}
	return items, nil
}

// unwrap returns the only array held by obj, or obj itself.
func unwrap(obj map[string]any) any {
	var found any
	for _, v := range obj {
		if _, ok := v.([]any); ok {
			if found != nil {
				return obj
			}
			found = v
		}
	}
	if found == nil {
		return obj
	}
	return found
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if nl := strings.IndexByte(raw, '\n'); nl != -1 {
			raw = raw[nl+1:]
		} else {
			raw = strings.TrimPrefix(strings.TrimPrefix(raw, "```json"), "```")
		}
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// reconcile maps items back onto the offered matches, keeping LLM order.
// Unknown and repeated IDs are returned as dropped, IDs that fit more than
// one offered candidate as ambiguous.
func reconcile(items []map[string]any, matches []*candidates.Match, topN int) (ranked []candidates.Ranked, dropped, ambiguous []string) {
	ids := newIDResolver(matches)
	seen := make(map[*candidates.Match]struct{}, len(items))

	for _, item := range items {
		if topN > 0 && len(ranked) == topN {
			break
		}

		rawID := field(item, idKeys...)
		m, amb := ids.resolve(rawID)
		if amb {
			ambiguous = append(ambiguous, coerceString(rawID))
			continue
		}
		if _, dup := seen[m]; m == nil || dup {
			dropped = append(dropped, coerceString(rawID))
			continue
		}
		seen[m] = struct{}{}

		ranked = append(ranked, candidates.Ranked{
			Position:      len(ranked) + 1,
			Record:        m.Record,
			Justification: justification(field(item, justificationKeys...)),
			Score:         score(field(item, scoreKeys...)),
			Distance:      m.Distance,
		})
	}

	return ranked, dropped, ambiguous
}

// idResolver looks IDs up in tiers: exact text, then case-insensitive, then
// numeric value. A looser tier only answers when it names one offered candidate.
type idResolver struct {
	exact   map[string]*candidates.Match
	folded  map[string][]*candidates.Match
	numeric map[string][]*candidates.Match
}

func newIDResolver(matches []*candidates.Match) *idResolver {
	r := &idResolver{
		exact:   make(map[string]*candidates.Match, len(matches)),
		folded:  make(map[string][]*candidates.Match, len(matches)),
		numeric: make(map[string][]*candidates.Match, len(matches)),
	}
	for _, m := range matches {
		id := idText(m.Record.ID)
		if _, ok := r.exact[id]; ok {
			continue
		}
		r.exact[id] = m

		fold := strings.ToLower(id)
		r.folded[fold] = append(r.folded[fold], m)
		if key := numericID(id); key != "" {
			r.numeric[key] = append(r.numeric[key], m)
		}
	}
	return r
}

func (r *idResolver) resolve(v any) (m *candidates.Match, ambiguous bool) {
	id := idText(v)
	if id == "" {
		return nil, false
	}
	if m, ok := r.exact[id]; ok {
		return m, false
	}

	for _, tier := range [][]*candidates.Match{r.folded[strings.ToLower(id)], r.numeric[numericID(id)]} {
		switch len(tier) {
		case 0:
			continue
		case 1:
			return tier[0], false
		default:
			return nil, true
		}
	}
	return nil, false
}

// idText is the trimmed textual form of an ID, without a leading "#".
func idText(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return ""
	case json.Number:
		s = string(val)
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	default:
		s = fmt.Sprintf("%v", val)
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "#"))
}

// numericID makes 151, 151.0 and 1.51e2 compare equal. Non numeric IDs yield "".
func numericID(s string) string {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return ""
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func justification(v any) string {
	if list, ok := v.([]any); ok {
		parts := make([]string, 0, len(list))
		for _, p := range list {
			if s := coerceString(p); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	}
	return coerceString(v)
}

func score(v any) *float64 {
	f := coerceFloat(v)
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case float64:
		return val
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
