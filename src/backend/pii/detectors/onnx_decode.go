package pii

import (
	"math"
	"sort"
	"strings"
)

const (
	maxSeqLen    = 512
	chunkOverlap = 64
	chunkStride  = maxSeqLen - chunkOverlap
)

// tokenOffset is the [start, end) byte range of a token in the source text.
type tokenOffset [2]int

type tokenChunk struct {
	tokenIDs        []int64
	offsets         []tokenOffset
	startTokenIndex int
	isFirst         bool
	isLast          bool
}

// chunkTokens splits a token sequence into windows of at most maxSeqLen
// tokens, each overlapping the previous one by chunkOverlap tokens.
func chunkTokens(tokenIDs []int64, offsets []tokenOffset) []tokenChunk {
	n := len(tokenIDs)
	if n <= maxSeqLen {
		return []tokenChunk{{
			tokenIDs: tokenIDs,
			offsets:  offsets,
			isFirst:  true,
			isLast:   true,
		}}
	}

	var chunks []tokenChunk
	for start := 0; ; start += chunkStride {
		end := start + maxSeqLen
		if end > n {
			end = n
		}
		chunks = append(chunks, tokenChunk{
			tokenIDs:        tokenIDs[start:end],
			offsets:         offsets[start:end],
			startTokenIndex: start,
			isFirst:         start == 0,
			isLast:          end == n,
		})
		if end == n {
			break
		}
	}
	return chunks
}

// softmaxArgmax returns the best class and its softmax probability.
func softmaxArgmax(logits []float32) (int, float64) {
	if len(logits) == 0 {
		return 0, 0
	}
	best := 0
	for i, l := range logits {
		if l > logits[best] {
			best = i
		}
	}
	maxLogit := float64(logits[best])
	var sum float64
	for _, l := range logits {
		sum += math.Exp(float64(l) - maxLogit)
	}
	return best, 1 / sum
}

// decodeBIO turns per-token logits into entities by grouping B-/I- tagged
// tokens. Tokens with an empty offset (special tokens) and tokens below
// minConfidence are treated as "O".
func decodeBIO(text string, logits []float32, numLabels int, offsets []tokenOffset, id2label map[int]string, minConfidence float64) []Entity {
	var entities []Entity
	if numLabels <= 0 {
		return entities
	}

	var current *Entity
	flush := func() {
		if current != nil {
			entities = append(entities, *current)
			current = nil
		}
	}

	for i, off := range offsets {
		lo, hi := i*numLabels, (i+1)*numLabels
		if hi > len(logits) {
			break
		}
		label := "O"
		class, confidence := softmaxArgmax(logits[lo:hi])
		if l, ok := id2label[class]; ok && confidence >= minConfidence {
			label = l
		}
		if off[0] >= off[1] || off[1] > len(text) {
			label = "O"
		}

		isBeginning := strings.HasPrefix(label, "B-")
		isInside := strings.HasPrefix(label, "I-")
		baseLabel := strings.TrimPrefix(strings.TrimPrefix(label, "B-"), "I-")

		switch {
		case label == "O":
			flush()
		case isInside && current != nil && current.Label == baseLabel:
			current.EndPos = off[1]
			current.Confidence = (current.Confidence + confidence) / 2
		case isBeginning || current == nil || current.Label != baseLabel:
			flush()
			current = &Entity{
				Label:      baseLabel,
				StartPos:   off[0],
				EndPos:     off[1],
				Confidence: confidence,
			}
		default:
			current.EndPos = off[1]
		}
	}
	flush()

	for i := range entities {
		entities[i].Text = text[entities[i].StartPos:entities[i].EndPos]
	}
	return entities
}

// mergeChunkEntities flattens per-chunk results, sorted by position. Spans
// that overlap (typically the same entity seen in two windows) collapse to
// the one with the higher confidence.
func mergeChunkEntities(chunks [][]Entity) []Entity {
	var all []Entity
	for _, c := range chunks {
		all = append(all, c...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].StartPos < all[j].StartPos
	})

	merged := make([]Entity, 0, len(all))
	for _, e := range all {
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if e.StartPos < last.EndPos && last.StartPos < e.EndPos {
				if e.Confidence > last.Confidence {
					*last = e
				}
				continue
			}
		}
		merged = append(merged, e)
	}
	return merged
}

// modelLabelAliases maps fine-grained model labels onto analyzer entity
// names.
var modelLabelAliases = map[string]string{
	"EMAIL":            "EMAIL_ADDRESS",
	"TELEPHONENUM":     "PHONE_NUMBER",
	"PHONENUMBER":      "PHONE_NUMBER",
	"PHONE":            "PHONE_NUMBER",
	"SOCIALNUM":        "US_SSN",
	"SSN":              "US_SSN",
	"FIRSTNAME":        "PERSON",
	"GIVENNAME":        "PERSON",
	"SURNAME":          "PERSON",
	"LASTNAME":         "PERSON",
	"PER":              "PERSON",
	"CREDITCARDNUMBER": "CREDIT_CARD",
	"CREDITCARD":       "CREDIT_CARD",
	"DATEOFBIRTH":      "DATE_TIME",
	"DATE":             "DATE_TIME",
	"CITY":             "LOCATION",
	"STREET":           "LOCATION",
	"ADDRESS":          "LOCATION",
	"BUILDINGNUM":      "LOCATION",
	"COUNTRY":          "LOCATION",
	"STATE":            "LOCATION",
	"LOC":              "LOCATION",
	"ZIPCODE":          "US_ZIP_CODE",
	"ZIP":              "US_ZIP_CODE",
	"IP":               "IP_ADDRESS",
	"IPADDRESS":        "IP_ADDRESS",
	"IBAN":             "IBAN_CODE",
}

func normalizeLabel(label string) string {
	label = strings.ToUpper(strings.TrimSpace(label))
	if alias, ok := modelLabelAliases[label]; ok {
		return alias
	}
	return label
}

// normalizeEntities renames labels and joins same-label spans separated by
// a single whitespace byte, so "John" + "Doe" become one PERSON.
func normalizeEntities(text string, entities []Entity) []Entity {
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		e.Label = normalizeLabel(e.Label)
		if n := len(out); n > 0 {
			last := &out[n-1]
			gap := e.StartPos - last.EndPos
			if last.Label == e.Label && gap >= 0 && gap <= 1 && strings.TrimSpace(text[last.EndPos:e.StartPos]) == "" {
				last.EndPos = e.EndPos
				last.Text = text[last.StartPos:last.EndPos]
				last.Confidence = math.Min(last.Confidence, e.Confidence)
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// filterEntities applies the input's label filter and score threshold.
func filterEntities(input DetectorInput, entities []Entity) []Entity {
	out := entities[:0]
	for _, e := range entities {
		if e.Confidence >= input.ScoreThreshold && input.wantsLabel(e.Label) {
			out = append(out, e)
		}
	}
	return out
}

// supportedFromLabels derives the sorted entity list from a BIO label set.
func supportedFromLabels(id2label map[int]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range id2label {
		if l == "O" || l == "" {
			continue
		}
		base := normalizeLabel(strings.TrimPrefix(strings.TrimPrefix(l, "B-"), "I-"))
		if !seen[base] {
			seen[base] = true
			out = append(out, base)
		}
	}
	sort.Strings(out)
	return out
}
