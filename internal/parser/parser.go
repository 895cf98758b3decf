package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/conorfennell/kindlenotes/internal/domain"
)

const (
	frontMatterDelimiter = "---"
	cardDelimiter        = "##"
	backsideDelimiter    = "%%"
	metaOpen             = "<!--"
	metaClose            = "-->"

	maxLineSize = 1024 * 1024
)

type state int

const (
	seekingFrontMatter state = iota
	readingFrontMatter
	readingBody
)

var validate = validator.New()

// frontMatter is the fixed schema of a document header.
type frontMatter struct {
	ID                        string `yaml:"id"`
	Name                      string `yaml:"name" validate:"required"`
	Author                    string `yaml:"author"`
	Photo                     string `yaml:"photo"`
	FlashcardsPerStudySession int    `yaml:"flashcardsPerStudySession" validate:"gte=0"`
}

// ParseFile reads a book document from the given path.
func ParseFile(path string) (domain.Book, error) {
	file, err := os.Open(path)
	if err != nil {
		return domain.Book{}, err
	}
	defer file.Close()

	return Decode(file)
}

// DecodeString parses a book document held in memory.
func DecodeString(document string) (domain.Book, error) {
	return Decode(strings.NewReader(document))
}

// Decode reads a book document: a front-matter header followed by card blocks.
// It fails with domain.ErrInvalidDocument when the header is missing, malformed
// or has no name.
func Decode(r io.Reader) (domain.Book, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var header []string
	var blocks [][]string
	var currentBlock []string
	currentState := seekingFrontMatter

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		switch currentState {
		case seekingFrontMatter:
			line = strings.TrimPrefix(line, "\uFEFF")
			if isDelimiter(line, frontMatterDelimiter) {
				currentState = readingFrontMatter
				continue
			}
			if strings.TrimSpace(line) != "" {
				return domain.Book{}, fmt.Errorf("%w: missing front-matter", domain.ErrInvalidDocument)
			}
		case readingFrontMatter:
			if isDelimiter(line, frontMatterDelimiter) {
				currentState = readingBody
				continue
			}
			header = append(header, line)
		case readingBody:
			if isDelimiter(line, cardDelimiter) {
				blocks = append(blocks, currentBlock)
				currentBlock = []string{}
				continue
			}
			currentBlock = append(currentBlock, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return domain.Book{}, err
	}
	if currentState != readingBody {
		return domain.Book{}, fmt.Errorf("%w: unterminated front-matter", domain.ErrInvalidDocument)
	}
	blocks = append(blocks, currentBlock)

	book, err := decodeHeader(header)
	if err != nil {
		return domain.Book{}, err
	}

	book.Flashcards = []domain.Flashcard{}
	for i, block := range blocks {
		card, err := decodeCard(block)
		if err != nil {
			return domain.Book{}, fmt.Errorf("%w: card %d: %v", domain.ErrInvalidDocument, i, err)
		}
		if card.Content == "" {
			continue
		}
		book.Flashcards = append(book.Flashcards, card)
	}
	return book, nil
}

func decodeHeader(lines []string) (domain.Book, error) {
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(strings.Join(lines, "\n")), &fm); err != nil {
		return domain.Book{}, fmt.Errorf("%w: front-matter: %v", domain.ErrInvalidDocument, err)
	}
	fm.ID = strings.TrimSpace(fm.ID)
	fm.Name = strings.TrimSpace(fm.Name)
	if err := validate.Struct(fm); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return domain.Book{}, fmt.Errorf("%w: front-matter field %s failed %q", domain.ErrInvalidDocument, verrs[0].Field(), verrs[0].Tag())
		}
		return domain.Book{}, fmt.Errorf("%w: %v", domain.ErrInvalidDocument, err)
	}
	return domain.Book{
		ID:                        fm.ID,
		Name:                      fm.Name,
		Author:                    fm.Author,
		Photo:                     fm.Photo,
		FlashcardsPerStudySession: fm.FlashcardsPerStudySession,
	}, nil
}

func isDelimiter(line, delimiter string) bool {
	return strings.TrimRight(line, " \t") == delimiter
}
