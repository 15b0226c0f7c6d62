package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Grammar - поддерживаемая грамматика ленты.
type Grammar string

const (
	GrammarAtom Grammar = "atom"
	GrammarRSS  Grammar = "rss"
)

// ParseError означает, что документ не удалось разобрать целиком:
// некорректный XML, неверный корневой элемент или отсутствующее обязательное поле.
// Частичный результат при этом не возвращается.
type ParseError struct {
	Grammar Grammar
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Grammar, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrMissingField оборачивается в ParseError, если не хватает обязательного поля.
var ErrMissingField = errors.New("missing required field")

func missing(path string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, path)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Parser декодирует Atom-ленты и RSS-каналы. Состояния между вызовами не хранит.
type Parser struct {
	log *slog.Logger
}

// New создает новый экземпляр Parser.
func New(log *slog.Logger) *Parser {
	return &Parser{
		log: log.With("component", "parser"),
	}
}

func (p *Parser) fail(grammar Grammar, err error) error {
	p.log.Error("Error decoding feed", slog.String("grammar", string(grammar)), slog.Any("error", err))
	return &ParseError{Grammar: grammar, Err: err}
}
