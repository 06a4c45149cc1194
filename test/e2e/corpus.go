// Package e2e provides end-to-end tests over a synthetic author corpus.
package e2e

import (
	"fmt"
	"sort"

	"github.com/hyperjump/kenkyu/internal/ingest"
	"github.com/hyperjump/kenkyu/internal/models"
)

// QueryTestCase is a query whose top results must be exactly the expected authors.
type QueryTestCase struct {
	Query           string
	ExpectedAuthors []string
	Description     string
}

// Corpus holds the ingestion input and its query test cases.
type Corpus struct {
	Input        *models.AuthorAbstracts
	TestCases    []QueryTestCase
	TotalPapers  int
	UniqueTexts  int
	TotalQueries int
}

var topics = []struct{ title, abstract string }{
	{"Graph neural networks", "Message passing over molecular graphs."},
	{"Quantum error correction", "Surface codes with low overhead."},
	{"Protein structure prediction", "Attention models for folding."},
	{"Federated learning", "Training across devices without sharing data."},
	{"Causal inference", "Identifying effects from observational data."},
	{"Robot grasping", "Tactile feedback for dexterous manipulation."},
	{"Climate downscaling", "Super-resolution of regional climate models."},
	{"Speech recognition", "Self-supervised pretraining on raw audio."},
	{"Compiler optimization", "Learned cost models for loop tiling."},
	{"Differential privacy", "Private aggregation of user statistics."},
}

// BuildCorpus returns authors p00..p(n-1), each with two solo papers, plus one paper shared
// by every pair (p2k, p2k+1). Every paper text is unique except the shared ones.
func BuildCorpus(n int) *Corpus {
	in := &models.AuthorAbstracts{AuthorAbstracts: make(map[string][]models.Paper, n)}
	var cases []QueryTestCase
	total := 0
	unique := 0
	for i := 0; i < n; i++ {
		id := authorID(i)
		for j := 0; j < 2; j++ {
			t := topics[(i+j)%len(topics)]
			p := models.Paper{
				Title:    fmt.Sprintf("%s, part %d.%d", t.title, i, j),
				Abstract: t.abstract,
				Year:     2015 + (i+j)%10,
				Authors:  id,
			}
			in.AuthorAbstracts[id] = append(in.AuthorAbstracts[id], p)
			total++
			unique++
			if j == 0 {
				cases = append(cases, QueryTestCase{
					Query:           ingest.NormalizeText(p),
					ExpectedAuthors: []string{id},
					Description:     fmt.Sprintf("solo paper of %s", id),
				})
			}
		}
	}
	for i := 0; i+1 < n; i += 2 {
		a, b := authorID(i), authorID(i+1)
		t := topics[i%len(topics)]
		p := models.Paper{
			Title:    fmt.Sprintf("Joint study of %s (%s, %s)", t.title, a, b),
			Abstract: t.abstract,
			Year:     2024,
			Authors:  a + ", " + b,
		}
		in.AuthorAbstracts[a] = append(in.AuthorAbstracts[a], p)
		in.AuthorAbstracts[b] = append(in.AuthorAbstracts[b], p)
		total += 2
		unique++
		expected := []string{a, b}
		sort.Strings(expected)
		cases = append(cases, QueryTestCase{
			Query:           ingest.NormalizeText(p),
			ExpectedAuthors: expected,
			Description:     fmt.Sprintf("shared paper of %s and %s", a, b),
		})
	}
	return &Corpus{
		Input:        in,
		TestCases:    cases,
		TotalPapers:  total,
		UniqueTexts:  unique,
		TotalQueries: len(cases),
	}
}

func authorID(i int) string {
	return fmt.Sprintf("p%02d", i)
}
