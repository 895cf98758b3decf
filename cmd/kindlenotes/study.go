package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/conorfennell/kindlenotes/internal/domain"
	"github.com/conorfennell/kindlenotes/internal/study"
)

var errQuit = errors.New("quit")

// runStudy drives one session from the terminal. The session is cancelled
// when ctx ends, input runs out or the user quits before it completes.
func runStudy(ctx context.Context, svc *study.Service, bookID string, in io.Reader, out io.Writer) (err error) {
	session, err := svc.NewSession(ctx, bookID)
	if errors.Is(err, domain.ErrNoEligibleBook) || errors.Is(err, domain.ErrNoEligibleFlashcards) {
		fmt.Fprintln(out, "Nothing to study right now.")
		return nil
	}
	if err != nil {
		return err
	}

	defer func() {
		if session.OnGoing() {
			// ctx may already be cancelled by the interrupt.
			if cerr := svc.Cancel(context.WithoutCancel(ctx), session.ID); cerr != nil && err == nil {
				err = cerr
			}
			fmt.Fprintln(out, "Session cancelled.")
		}
		if errors.Is(err, errQuit) {
			err = nil
		}
	}()

	lines := readLines(ctx, in)
	prompt := func(msg string) (string, error) {
		fmt.Fprint(out, msg)
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return "", errQuit
		case line, ok := <-lines:
			if !ok {
				return "", errQuit
			}
			return strings.TrimSpace(line), nil
		}
	}

	for session.OnGoing() {
		view, err := svc.NextFlashcard(ctx, session.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n[%d/%d] %s\n\n%s\n\n", view.Position+1, view.TotalFlashcards, view.BookName, view.Flashcard.Content)
		if view.Flashcard.Backside != "" {
			if _, err := prompt("(enter to reveal) "); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%s\n\n", view.Flashcard.Backside)
		}

		grade, err := askGrade(prompt)
		if err != nil {
			return err
		}
		if session, err = svc.SaveResult(ctx, session.ID, view.Flashcard.Hash, grade); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "\nSession complete. %d flashcard(s) to review next time.\n", len(session.NeedToReview))
	return nil
}

func askGrade(prompt func(string) (string, error)) (int, error) {
	for {
		answer, err := prompt("Grade 0 (forgot) to 4 (easy), q to quit: ")
		if err != nil {
			return 0, err
		}
		if answer == "q" {
			return 0, errQuit
		}
		if g, err := strconv.Atoi(answer); err == nil && domain.ValidGrade(g) {
			return g, nil
		}
	}
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
