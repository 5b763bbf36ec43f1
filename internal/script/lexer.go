package script

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenKind тип токена
type TokenKind uint8

const (
	TokenIdent TokenKind = iota
	TokenNumber
	TokenString
	TokenOperator
	TokenNewline
)

// Token единица разобранного скрипта
type Token struct {
	Kind  TokenKind
	Value string
	Line  int
	Col   int
}

// blockPairs ключевые слова, открывающие блок, и их закрывающие пары
var blockPairs = map[string]string{
	"IF":    "ENDIF",
	"WHILE": "ENDWHILE",
	"FOR":   "ENDFOR",
}

var brackets = map[rune]rune{')': '(', ']': '[', '}': '{'}

// Lexer движок по умолчанию: токенизирует текст и проверяет
// парность кавычек, скобок и блоков IF/WHILE/FOR.
type Lexer struct{}

// NewLexer создаёт движок по умолчанию
func NewLexer() *Lexer {
	return &Lexer{}
}

// Compile реализует Engine
func (lx *Lexer) Compile(text string) (*Trigger, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return nil, err
	}
	if err := checkStructure(tokens); err != nil {
		return nil, err
	}
	return NewTrigger(text, tokens), nil
}

// Tokenize разбивает текст на токены
func Tokenize(text string) ([]Token, error) {
	var tokens []Token
	runes := []rune(text)
	line, col := 1, 1

	for i := 0; i < len(runes); {
		r := runes[i]
		startLine, startCol := line, col

		switch {
		case r == '\n':
			tokens = append(tokens, Token{Kind: TokenNewline, Value: "\n", Line: line, Col: col})
			i++
			line++
			col = 1

		case unicode.IsSpace(r):
			i++
			col++

		case r == '"':
			var sb strings.Builder
			i++
			col++
			closed := false
			for i < len(runes) {
				c := runes[i]
				if c == '\\' && i+1 < len(runes) {
					sb.WriteRune(runes[i+1])
					i += 2
					col += 2
					continue
				}
				if c == '\n' {
					break
				}
				i++
				col++
				if c == '"' {
					closed = true
					break
				}
				sb.WriteRune(c)
			}
			if !closed {
				return nil, &CompileError{Line: startLine, Col: startCol, Msg: "unterminated string literal"}
			}
			tokens = append(tokens, Token{Kind: TokenString, Value: sb.String(), Line: startLine, Col: startCol})

		case unicode.IsDigit(r):
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, Token{Kind: TokenNumber, Value: string(runes[i:j]), Line: line, Col: col})
			col += j - i
			i = j

		case unicode.IsLetter(r) || r == '_' || r == '#' || r == '$':
			j := i + 1
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_' || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, Token{Kind: TokenIdent, Value: string(runes[i:j]), Line: line, Col: col})
			col += j - i
			i = j

		default:
			tokens = append(tokens, Token{Kind: TokenOperator, Value: string(r), Line: line, Col: col})
			i++
			col++
		}
	}

	return tokens, nil
}

// checkStructure проверяет парность скобок и блоков
func checkStructure(tokens []Token) error {
	type open struct {
		value string
		tok   Token
	}
	var stack []open

	closers := make(map[string]string, len(blockPairs))
	for o, c := range blockPairs {
		closers[c] = o
	}

	for _, tok := range tokens {
		switch tok.Kind {
		case TokenOperator:
			r := []rune(tok.Value)[0]
			switch r {
			case '(', '[', '{':
				stack = append(stack, open{value: tok.Value, tok: tok})
			case ')', ']', '}':
				want := string(brackets[r])
				if len(stack) == 0 || stack[len(stack)-1].value != want {
					return &CompileError{Line: tok.Line, Col: tok.Col, Msg: fmt.Sprintf("unexpected %q", tok.Value)}
				}
				stack = stack[:len(stack)-1]
			}
		case TokenIdent:
			if _, ok := blockPairs[tok.Value]; ok {
				stack = append(stack, open{value: tok.Value, tok: tok})
				continue
			}
			if opener, ok := closers[tok.Value]; ok {
				if len(stack) == 0 || stack[len(stack)-1].value != opener {
					return &CompileError{Line: tok.Line, Col: tok.Col, Msg: fmt.Sprintf("%s without %s", tok.Value, opener)}
				}
				stack = stack[:len(stack)-1]
			}
		}
	}

	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return &CompileError{Line: top.tok.Line, Col: top.tok.Col, Msg: fmt.Sprintf("unclosed %q", top.value)}
	}
	return nil
}
