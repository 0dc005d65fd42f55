// Package siteqa answers a question from a site's chunks and picks the best answer.
package siteqa

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xhad/fullstackgpt/internal/models"
)

const MaxScore = 5

var (
	ErrMissingScore = errors.New("answer has no score")
	ErrEmptyAnswer  = errors.New("answer is empty")

	scoreLine  = regexp.MustCompile(`(?im)^\s*score\s*:\s*(-?\d+)\s*$`)
	answerHead = regexp.MustCompile(`(?i)^\s*answer\s*:\s*`)
)

// ParseScored splits a reply of the form "Answer: ...\nScore: N". The score
// must be an integer from 0 to MaxScore.
func ParseScored(reply string) (string, int, error) {
	matches := scoreLine.FindAllStringSubmatchIndex(reply, -1)
	if len(matches) == 0 {
		return "", 0, ErrMissingScore
	}
	last := matches[len(matches)-1]

	score, err := strconv.Atoi(reply[last[2]:last[3]])
	if err != nil {
		return "", 0, fmt.Errorf("invalid score: %w", err)
	}
	if score < 0 || score > MaxScore {
		return "", 0, fmt.Errorf("score %d outside 0..%d", score, MaxScore)
	}

	answer := strings.TrimSpace(answerHead.ReplaceAllString(reply[:last[0]], ""))
	if answer == "" {
		return "", 0, ErrEmptyAnswer
	}
	return answer, score, nil
}

// Rank orders answers by score, then by timestamp with newer first and missing
// timestamps last, then by their original position.
func Rank(answers []models.ScoredAnswer) []models.ScoredAnswer {
	ranked := append([]models.ScoredAnswer(nil), answers...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		switch {
		case a.Timestamp == nil || b.Timestamp == nil:
			return a.Timestamp != nil && b.Timestamp == nil
		default:
			return a.Timestamp.After(*b.Timestamp)
		}
	})
	return ranked
}
