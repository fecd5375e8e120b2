package htmldom

import (
	"errors"
	"fmt"
	"strings"
)

// compileSelector converts the CSS subset the shipped configs use into
// an XPath expression for htmlquery. Supported grammar:
//
//	tag, #id, .class, [attr], [attr=value]
//	compounds of the above (tag#id.class[attr=value])
//	descendant combination by whitespace
//	comma-separated groups
//
// Anything else (child combinators, pseudo-classes) is an error rather
// than a silent miss, so a config typo shows up in the first check run.
// When scoped is true the expression is anchored at the context node
// instead of the document root.
func compileSelector(selector string, scoped bool) (string, error) {
	sel := strings.TrimSpace(selector)
	if sel == "" {
		return "", errors.New("empty selector")
	}
	var exprs []string
	for _, group := range strings.Split(sel, ",") {
		group = strings.TrimSpace(group)
		if group == "" {
			return "", fmt.Errorf("selector %q: empty group", selector)
		}
		var b strings.Builder
		if scoped {
			b.WriteString(".")
		}
		for _, step := range strings.Fields(group) {
			compiled, err := compileCompound(step)
			if err != nil {
				return "", fmt.Errorf("selector %q: %w", selector, err)
			}
			b.WriteString("//")
			b.WriteString(compiled)
		}
		exprs = append(exprs, b.String())
	}
	return strings.Join(exprs, " | "), nil
}

// compileCompound handles one whitespace-free compound like
// "ytd-comments#comments" or "input[type=checkbox]".
func compileCompound(part string) (string, error) {
	tag := "*"
	var preds []string
	i := 0

	readName := func() string {
		start := i
		for i < len(part) && isNameByte(part[i]) {
			i++
		}
		return part[start:i]
	}

	if i < len(part) && isNameByte(part[i]) {
		tag = readName()
	} else if i < len(part) && part[i] == '*' {
		i++
	}

	for i < len(part) {
		switch part[i] {
		case '#':
			i++
			id := readName()
			if id == "" {
				return "", fmt.Errorf("dangling # in %q", part)
			}
			v, err := xpathString(id)
			if err != nil {
				return "", err
			}
			preds = append(preds, "@id="+v)
		case '.':
			i++
			class := readName()
			if class == "" {
				return "", fmt.Errorf("dangling . in %q", part)
			}
			v, err := xpathString(" " + class + " ")
			if err != nil {
				return "", err
			}
			preds = append(preds, "contains(concat(' ', normalize-space(@class), ' '), "+v+")")
		case '[':
			end := strings.IndexByte(part[i:], ']')
			if end < 0 {
				return "", fmt.Errorf("unterminated attribute selector in %q", part)
			}
			pred, err := compileAttr(part[i+1 : i+end])
			if err != nil {
				return "", err
			}
			preds = append(preds, pred)
			i += end + 1
		default:
			return "", fmt.Errorf("unsupported syntax %q in %q", string(part[i]), part)
		}
	}

	var b strings.Builder
	b.WriteString(tag)
	for _, p := range preds {
		b.WriteString("[")
		b.WriteString(p)
		b.WriteString("]")
	}
	return b.String(), nil
}

// compileAttr handles the inside of [...]: bare presence or = equality,
// with optional single or double quotes around the value.
func compileAttr(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", errors.New("empty attribute selector")
	}
	name, value, hasValue := strings.Cut(body, "=")
	name = strings.TrimSpace(name)
	for j := 0; j < len(name); j++ {
		if !isNameByte(name[j]) {
			return "", fmt.Errorf("bad attribute name %q", name)
		}
	}
	if !hasValue {
		return "@" + name, nil
	}
	value = strings.TrimSpace(value)
	if len(value) >= 2 && (value[0] == '\'' || value[0] == '"') && value[len(value)-1] == value[0] {
		value = value[1 : len(value)-1]
	}
	v, err := xpathString(value)
	if err != nil {
		return "", err
	}
	return "@" + name + "=" + v, nil
}

// xpathString quotes a literal for embedding in an XPath expression.
// Values mixing both quote characters are rejected; nothing the configs
// carry needs them.
func xpathString(v string) (string, error) {
	if !strings.Contains(v, "'") {
		return "'" + v + "'", nil
	}
	if !strings.Contains(v, `"`) {
		return `"` + v + `"`, nil
	}
	return "", fmt.Errorf("value %q mixes quote characters", v)
}

func isNameByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z':
		return true
	case b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_':
		return true
	}
	return false
}
