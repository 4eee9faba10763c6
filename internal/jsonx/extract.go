package jsonx

// extract.go — extracción best-effort de JSON desde texto libre del modelo.
//
// Cadena ordenada de parsers falibles: parseo directo → substring por regex.
// Se detiene en el primer éxito; si ninguno aplica, ok=false y el sample
// no aporta nada (nunca panic, nunca error).

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	objectRe = regexp.MustCompile(`(?s)\{.*\}`)
	arrayRe  = regexp.MustCompile(`(?s)\[.*\]`)
)

// ExtractObject saca un objeto JSON plano del texto: primero parseo directo,
// después el primer substring `{...}`.
func ExtractObject(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj, true
	}

	m := objectRe.FindString(text)
	if m == "" {
		return nil, false
	}
	if err := json.Unmarshal([]byte(m), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// ExtractArray saca un array JSON del texto. Cadena de intentos:
// array directo → objeto directo con la clave wrapper → substring `[...]` →
// substring `{...}` con la clave wrapper.
func ExtractArray(text, wrapperKey string) ([]any, bool) {
	text = strings.TrimSpace(text)

	var arr []any
	if err := json.Unmarshal([]byte(text), &arr); err == nil {
		return arr, true
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		if wrapped, ok := obj[wrapperKey].([]any); ok {
			return wrapped, true
		}
	}

	if m := arrayRe.FindString(text); m != "" {
		if err := json.Unmarshal([]byte(m), &arr); err == nil {
			return arr, true
		}
	}

	if m := objectRe.FindString(text); m != "" {
		if err := json.Unmarshal([]byte(m), &obj); err == nil {
			if wrapped, ok := obj[wrapperKey].([]any); ok {
				return wrapped, true
			}
		}
	}

	return nil, false
}
