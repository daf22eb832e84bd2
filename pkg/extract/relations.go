package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/laguileracl/leychile-epub/pkg/norma"
	"github.com/laguileracl/leychile-epub/pkg/store"
)

var (
	// derogationPattern matches the resolutive verbs that extinguish a norm.
	// "DERÓGUESE", "Derógase", "déjase sin efecto", "quedan derogadas".
	derogationPattern = regexp.MustCompile(`(?i)\b(der[óo]g(?:ase|uese|uense|anse)|d[ée]j(?:ase|ese|anse|ense)\s+sin\s+efecto|queda[n]?\s+derogad[oa]s?|sin\s+efecto\s+(?:el|la|los|las))\b`)

	// modificationPattern matches the resolutive verbs that alter a norm.
	modificationPattern = regexp.MustCompile(`(?i)\b(sustit[úu]y(?:ase|ese|anse|ense)|reempl[áa]z(?:ase|ese|anse|ense)|elim[íi]n(?:ase|ese|anse|ense)|agr[ée]g(?:ase|uese|uense|anse)|modif[íi](?:case|quese|canse|quense)|incorp[óo]r(?:ase|ese|anse|ense)|interc[áa]l(?:ase|ese|anse|ense))\b`)

	// targetPattern matches the norm a resolutive verb acts on:
	// "el Instructivo N° 3, de 2018", "la Ley N° 20.720". Group 1 is the
	// type, group 2 the number, group 3 the optional year.
	targetPattern = regexp.MustCompile(`(?i)\b(instructivo|oficio\s+circular|oficio|circular|norma\s+de\s+car[áa]cter\s+general|ncg|resoluci[óo]n\s+exenta|resoluci[óo]n|ley|decreto\s+supremo|decreto\s+ley|decreto|d\.?\s*f\.?\s*l\.?)\s+(?:n[°º]?\s*)?([\d][\d.]*)(?:,?\s+de[l]?\s+(\d{4}))?`)

	// residualPattern matches clauses keeping parts of a derogated norm in
	// force.
	residualPattern = regexp.MustCompile(`(?i)(mantendr[áa]n?\s+su\s+vigencia|continuar[áa]n?\s+vigentes?|seguir[áa]n?\s+vigentes?)`)
)

// excludedTargets are citation forms that never become relationship targets:
// oficios are internal correspondence, not norms with vigency of their own.
var excludedTargets = map[string]bool{
	"oficio":          true,
	"oficio circular": true,
}

// RelationTracker derives relationship edges and vigency updates from the
// resolutive language of a parsed document and records them in a Store. Runs
// are idempotent: the store deduplicates edges and overwrites vigency.
type RelationTracker struct {
	store store.Store
}

// NewRelationTracker returns a tracker writing to the given store.
func NewRelationTracker(st store.Store) *RelationTracker {
	return &RelationTracker{store: st}
}

// Track scans every section of the document for resolutive verbs (head,
// VISTOS, CONSIDERANDO, RESUELVO, closing, and each article body), records
// the resulting edges and vigency updates, then records the remaining
// VISTOS/CONSIDERANDO citations as cites edges. A norm hit by a resolutive
// verb keeps that edge; it is not additionally recorded as a citation.
// Approval verbs (APRUÉBASE) enact the document's own content and produce no
// edge.
func (t *RelationTracker) Track(doc *norma.Document) ([]store.Edge, []norma.Diagnostic, error) {
	var edges []store.Edge
	var diags []norma.Diagnostic

	seen := make(map[string]bool)
	record := func(e store.Edge) error {
		if err := t.store.AddEdge(e); err != nil {
			return err
		}
		key := e.Target + "\x00" + string(e.Kind)
		if seen[key] {
			return nil
		}
		seen[key] = true
		edges = append(edges, e)
		return nil
	}

	segments := []struct {
		nodeID string
		text   string
	}{
		{"", doc.Preamble.Text},
		{"", doc.Preamble.Vistos},
		{"", doc.Preamble.Considerando},
		{"", doc.Preamble.Resuelvo},
		{"", doc.Preamble.Closing},
	}
	for _, a := range doc.AllArticles() {
		segments = append(segments, struct {
			nodeID string
			text   string
		}{a.ID, a.FlatText()})
	}

	resolved := make(map[string]bool)
	for _, seg := range segments {
		segEdges, segDiags, err := t.trackSegment(doc.ID, seg.nodeID, seg.text)
		if err != nil {
			return nil, nil, err
		}
		for _, e := range segEdges {
			if err := record(e); err != nil {
				return nil, nil, err
			}
			resolved[e.Target] = true
		}
		diags = append(diags, segDiags...)
	}

	scanner := newLawReferenceScanner()
	for _, cited := range scanner.Scan(doc.Preamble.Vistos + "\n" + doc.Preamble.Considerando) {
		target := normTargetID(cited)
		if resolved[target] {
			continue
		}
		err := record(store.Edge{
			Source: doc.ID,
			Target: target,
			Kind:   store.KindCites,
			Detail: cited,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	return edges, diags, nil
}

// trackSegment finds the resolutive verbs of one text segment and resolves
// each to its target norm.
func (t *RelationTracker) trackSegment(docID, nodeID, text string) ([]store.Edge, []norma.Diagnostic, error) {
	var edges []store.Edge
	var diags []norma.Diagnostic

	type verbHit struct {
		kind store.EdgeKind
		loc  []int
	}
	var hits []verbHit
	for _, loc := range derogationPattern.FindAllStringIndex(text, -1) {
		hits = append(hits, verbHit{store.KindDerogates, loc})
	}
	for _, loc := range modificationPattern.FindAllStringIndex(text, -1) {
		hits = append(hits, verbHit{store.KindModifies, loc})
	}

	for _, hit := range hits {
		// The target follows the verb within the same sentence.
		tail := sentenceTail(text, hit.loc[1])
		m := targetPattern.FindStringSubmatch(tail)
		if m == nil {
			diags = append(diags, norma.Diagnostic{
				NodeID:   nodeID,
				Rule:     "objetivo-no-resuelto",
				Reason:   fmt.Sprintf("verbo resolutivo sin norma identificable: %q", truncate(text[hit.loc[0]:hit.loc[1]]+tail, 80)),
				Severity: norma.SeverityWarning,
			})
			continue
		}

		typeName := strings.ToLower(strings.Join(strings.Fields(m[1]), " "))
		if excludedTargets[typeName] {
			diags = append(diags, norma.Diagnostic{
				NodeID:   nodeID,
				Rule:     "objetivo-excluido",
				Reason:   fmt.Sprintf("%s N° %s no es una norma con vigencia propia", m[1], m[2]),
				Severity: norma.SeverityInfo,
			})
			continue
		}

		target := targetID(typeName, m[2], m[3])
		edges = append(edges, store.Edge{
			Source: docID,
			Target: target,
			Kind:   hit.kind,
			Detail: strings.TrimSpace(truncate(text[hit.loc[0]:hit.loc[1]]+" "+m[0], 120)),
		})

		if hit.kind == store.KindDerogates {
			note := ""
			if residualPattern.MatchString(tail) {
				// Some clauses keep annexes or transitional rules alive; the
				// norm is still recorded as derogated, with the caveat noted.
				note = "cláusula de vigencia residual detectada"
				diags = append(diags, norma.Diagnostic{
					NodeID:   nodeID,
					Rule:     "vigencia-residual",
					Reason:   fmt.Sprintf("derogación de %s con cláusula de vigencia residual", target),
					Severity: norma.SeverityInfo,
				})
			}
			err := t.store.UpsertVigency(store.VigencyRecord{
				NormID: target,
				State:  norma.VigencyDerogado,
				Note:   note,
			})
			if err != nil {
				return nil, nil, err
			}
		}
	}

	return edges, diags, nil
}

// sentenceTail returns the text from the offset to the end of the sentence.
// A period followed by a digit is part of a dotted norm number ("20.720"),
// not a sentence boundary.
func sentenceTail(text string, from int) string {
	tail := text[from:]
	end := 0
	for {
		j := strings.IndexAny(tail[end:], ".;\n")
		if j < 0 {
			return tail
		}
		end += j
		if tail[end] == '.' && end+1 < len(tail) && tail[end+1] >= '0' && tail[end+1] <= '9' {
			end++
			continue
		}
		return tail[:end]
	}
}

// targetID builds the canonical target identifier: "instructivo-3-2018",
// "ley-20720".
func targetID(typeName, number, year string) string {
	typeKey := strings.ReplaceAll(typeName, " ", "-")
	typeKey = strings.ReplaceAll(typeKey, ".", "")
	typeKey = foldAccents(typeKey)
	id := typeKey + "-" + strings.ReplaceAll(number, ".", "")
	if year != "" {
		id += "-" + year
	}
	return id
}

// normTargetID derives a target identifier from a display citation like
// "Ley 20.720".
func normTargetID(display string) string {
	fields := strings.Fields(display)
	if len(fields) < 2 {
		return strings.ToLower(display)
	}
	typeName := strings.ToLower(strings.Join(fields[:len(fields)-1], " "))
	return targetID(typeName, fields[len(fields)-1], "")
}

// foldAccents lowers accented vowels to their plain form for identifiers.
func foldAccents(s string) string {
	return strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
	).Replace(s)
}
