package domain

// dedup.go — identidad y deduplicación fuzzy de eventos.
//
// La estimación es el recurso caro a proteger: titulares casi-duplicados de
// fuentes distintas sobre el mismo evento deben colapsar en UN solo trabajo
// de estimación. La identidad exacta es un hash de contenido; la fuzzy compara
// conjuntos de palabras normalizadas con solapamiento Jaccard.

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	// overlapThreshold: mínimo solapamiento de palabras para declarar duplicado.
	overlapThreshold = 0.6
	// dateWindowDays: si ambos eventos tienen fecha, deben estar a ±3 días.
	dateWindowDays = 3
)

var (
	dateRe = regexp.MustCompile(`(?i)\b(?:\d{4}[-/]\d{1,2}[-/]\d{1,2}` +
		`|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)\w*\s+\d{1,2}` +
		`|\d{1,2}/\d{1,2}/\d{4})\b`)
	numRe        = regexp.MustCompile(`[+\-]?\$?\d[\d,.]*[%$BMKbmk]?`)
	punctRe      = regexp.MustCompile(`[^\w\s]`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
)

// EventID deriva el id de un evento como hash de contenido de
// (coin_symbol, event_type, title), determinista y puro: reingestar texto
// idéntico produce el mismo id.
func EventID(coinSymbol, eventType, title string) string {
	raw := strings.ToLower(coinSymbol) + eventType + strings.ToLower(strings.TrimSpace(title))
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NormalizeTitle prepara un título para comparación fuzzy:
// lowercase → quitar fechas → quitar números/$/％ → quitar puntuación →
// colapsar espacios → ordenar palabras.
func NormalizeTitle(title string) string {
	t := strings.ToLower(title)
	t = dateRe.ReplaceAllString(t, "")
	t = numRe.ReplaceAllString(t, "")
	t = punctRe.ReplaceAllString(t, " ")
	t = strings.TrimSpace(multiSpaceRe.ReplaceAllString(t, " "))
	words := strings.Fields(t)
	sort.Strings(words)
	return strings.Join(words, " ")
}

// IsDuplicate decide si candidate ya está representado en existing.
// Solo compara eventos con el mismo (coin_symbol, event_type). El solapamiento
// es |A∩B| / max(|A|,|B|) sobre conjuntos de palabras normalizadas; un título
// normalizado vacío nunca hace match (se trata como único). Si ambos lados
// tienen fecha, además deben estar a ±3 días.
// Solo decide: la inserción (o no) queda en manos del caller.
func IsDuplicate(existing []Event, candidate Event) bool {
	wordsNew := wordSet(NormalizeTitle(candidate.Title))
	if len(wordsNew) == 0 {
		return false
	}

	for _, ev := range existing {
		if ev.CoinSymbol != candidate.CoinSymbol || ev.EventType != candidate.EventType {
			continue
		}
		wordsEx := wordSet(NormalizeTitle(ev.Title))
		if len(wordsEx) == 0 {
			continue
		}

		overlap := float64(intersectCount(wordsNew, wordsEx)) /
			float64(max(len(wordsNew), len(wordsEx)))
		if overlap < overlapThreshold {
			continue
		}

		if candidate.DateEvent != "" && ev.DateEvent != "" {
			if days, ok := daysBetween(candidate.DateEvent, ev.DateEvent); ok && days > dateWindowDays {
				continue
			}
		}
		return true
	}
	return false
}

// wordSet convierte un título normalizado en conjunto de palabras.
func wordSet(normalized string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(normalized) {
		set[w] = true
	}
	return set
}

// intersectCount cuenta las palabras presentes en ambos conjuntos.
func intersectCount(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}

// daysBetween devuelve la distancia absoluta en días entre dos fechas
// YYYY-MM-DD. ok=false si alguna fecha no parsea; en ese caso el caller
// ignora la ventana de fechas.
func daysBetween(d1, d2 string) (int, bool) {
	t1, err1 := time.Parse("2006-01-02", truncDate(d1))
	t2, err2 := time.Parse("2006-01-02", truncDate(d2))
	if err1 != nil || err2 != nil {
		return 0, false
	}
	days := int(t1.Sub(t2).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days, true
}

func truncDate(d string) string {
	if len(d) > 10 {
		return d[:10]
	}
	return d
}
