package common

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/net/html"
)

// DefaultWordBudget is the approximate number of words per segment.
const DefaultWordBudget = 150

// SegmentText slices text into ordered segments of roughly budget words each,
// preferring to break on sentence-ending punctuation. A single sentence
// longer than the budget becomes its own segment rather than being split
// mid-sentence.
func SegmentText(text string, budget int) []string {
	if budget <= 0 {
		budget = DefaultWordBudget
	}

	sentences := splitSentences(text)
	var segments []string
	var current strings.Builder
	currentWords := 0

	for _, sentence := range sentences {
		words := len(strings.Fields(sentence))
		if words == 0 {
			continue
		}
		if currentWords > 0 && currentWords+words > budget {
			segments = append(segments, strings.TrimSpace(current.String()))
			current.Reset()
			currentWords = 0
		}
		if currentWords > 0 {
			current.WriteString(" ")
		}
		current.WriteString(strings.TrimSpace(sentence))
		currentWords += words
	}
	if currentWords > 0 {
		segments = append(segments, strings.TrimSpace(current.String()))
	}
	return segments
}

// splitSentences cuts text after runs of sentence-ending punctuation, keeping
// the delimiters attached so rejoining the pieces loses nothing.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// swallow the rest of the punctuation run ("...", "?!")
		for i+1 < len(runes) && (runes[i+1] == '.' || runes[i+1] == '!' || runes[i+1] == '?') {
			i++
			current.WriteRune(runes[i])
		}
		if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		sentences = append(sentences, current.String())
	}
	return sentences
}

// ExtractTextFromPDF pulls plain text out of every page of a PDF.
func ExtractTextFromPDF(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("error opening PDF: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("error extracting text from page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// ExtractTextFromURL fetches a page and returns its visible text joined by
// single spaces, skipping script and style content.
func ExtractTextFromURL(url string) (string, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return "", fmt.Errorf("error fetching URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("error fetching URL: status %d", resp.StatusCode)
	}
	return stripHTML(resp.Body)
}

func stripHTML(r io.Reader) (string, error) {
	tokenizer := html.NewTokenizer(r)
	var parts []string
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if tokenizer.Err() == io.EOF {
				return strings.Join(parts, " "), nil
			}
			return "", fmt.Errorf("error parsing HTML: %w", tokenizer.Err())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
				parts = append(parts, strings.Join(strings.Fields(text), " "))
			}
		}
	}
}
