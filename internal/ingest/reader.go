package ingest

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/salcido/reddibot/internal/domain"
)

// Regex for valid subreddit names
var subNameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,21}$`)

// LoadTargets reads a `subreddit,kind` CSV with a header row. Invalid names
// are skipped; a missing or unknown kind means image.
func LoadTargets(path string) ([]domain.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadTargets(f)
}

// ReadTargets is LoadTargets over an arbitrary reader.
func ReadTargets(src io.Reader) ([]domain.Target, error) {
	// Wrap in BOM stripper
	r := csv.NewReader(stripBOM(src))
	r.FieldsPerRecord = -1

	var targets []domain.Target
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		line++
		if line == 1 {
			continue
		} // Skip header

		// Validation (Fail-Soft)
		sub := strings.TrimSpace(record[0])
		if !subNameRegex.MatchString(sub) {
			continue
		}

		kind := domain.TargetImage
		if len(record) > 1 && strings.EqualFold(strings.TrimSpace(record[1]), string(domain.TargetText)) {
			kind = domain.TargetText
		}

		targets = append(targets, domain.Target{
			Subreddit: sub,
			Kind:      kind,
		})
	}
	return targets, nil
}

// SplitTargets returns every subreddit to fetch plus the ones whose posts
// are published as text.
func SplitTargets(targets []domain.Target) (all, text []string) {
	for _, t := range targets {
		all = append(all, t.Subreddit)
		if t.Kind == domain.TargetText {
			text = append(text, t.Subreddit)
		}
	}
	return all, text
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	rdr, _, err := br.ReadRune()
	if err != nil {
		return br
	}
	if rdr != '\uFEFF' {
		br.UnreadRune()
	}
	return br
}
