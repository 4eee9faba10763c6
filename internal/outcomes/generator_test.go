package outcomes

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alejandrodnm/cryptoscanner/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	responses []string
	err       error
	calls     int
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, _ float64, _ int) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	idx := min(f.calls-1, len(f.responses)-1)
	return f.responses[idx], nil
}

func listingEvent() domain.Event {
	return domain.Event{
		ID:         "ev1",
		CoinSymbol: "SOL",
		EventType:  "listing",
		Title:      "SOL listing on a major exchange",
	}
}

func TestGenerate_TemplateTypeSkipsLLM(t *testing.T) {
	fake := &fakeCompleter{}
	gen := NewGenerator(fake)

	got := gen.Generate(context.Background(), listingEvent())
	require.Len(t, got, 4)
	assert.Zero(t, fake.calls, "template types never hit the LLM")

	assert.Equal(t, "A", got[0].Key)
	assert.Equal(t, domain.CategoryPositive, got[0].Category)
	assert.Equal(t, domain.CategoryCancelled, got[3].Category)
	for _, o := range got {
		assert.True(t, o.IsTemplate)
		assert.Equal(t, "ev1", o.EventID)
	}
	assert.True(t, Validate(got))
}

func TestGenerate_TemplateSubstitutesCoin(t *testing.T) {
	gen := NewGenerator(&fakeCompleter{})

	ev := listingEvent()
	ev.EventType = "partnership"
	got := gen.Generate(context.Background(), ev)
	require.Len(t, got, 4)
	assert.Contains(t, got[0].Text, "SOL")
	assert.NotContains(t, got[0].Text, "{coin}")
}

func TestGenerate_AllSevenTemplatesAreValid(t *testing.T) {
	gen := NewGenerator(&fakeCompleter{})
	for eventType := range eventTemplates {
		ev := listingEvent()
		ev.EventType = eventType
		got := gen.Generate(context.Background(), ev)
		assert.True(t, Validate(got), "template %q must produce a valid set", eventType)
	}
}

func TestGenerate_LLMForNonStandardType(t *testing.T) {
	fake := &fakeCompleter{responses: []string{
		`[{"key": "A", "text": "Proposal passes with broad support", "category": "positive"},
		  {"key": "B", "text": "Proposal passes narrowly", "category": "neutral"},
		  {"key": "C", "text": "Proposal is rejected", "category": "negative"}]`,
	}}
	gen := NewGenerator(fake)

	ev := listingEvent()
	ev.EventType = "governance"
	got := gen.Generate(context.Background(), ev)
	require.Len(t, got, 3)
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, "Proposal passes with broad support", got[0].Text)
	for _, o := range got {
		assert.False(t, o.IsTemplate)
		assert.Equal(t, "ev1", o.EventID)
	}
}

func TestGenerate_RetriesOnInvalidThenSucceeds(t *testing.T) {
	fake := &fakeCompleter{responses: []string{
		`not json`,
		// sin outcome positivo → inválido
		`[{"key": "A", "text": "x", "category": "negative"},
		  {"key": "B", "text": "y", "category": "neutral"},
		  {"key": "C", "text": "z", "category": "cancelled"}]`,
		`[{"key": "A", "text": "good", "category": "positive"},
		  {"key": "B", "text": "flat", "category": "neutral"},
		  {"key": "C", "text": "bad", "category": "negative"}]`,
	}}
	gen := NewGenerator(fake)

	ev := listingEvent()
	ev.EventType = "governance"
	got := gen.Generate(context.Background(), ev)
	require.Len(t, got, 3)
	assert.Equal(t, 3, fake.calls)
	assert.False(t, got[0].IsTemplate)
}

func TestGenerate_GenericFallbackAfterThreeFailures(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("providers exhausted")}
	gen := NewGenerator(fake)

	ev := listingEvent()
	ev.EventType = "governance"
	got := gen.Generate(context.Background(), ev)
	require.Len(t, got, 4)
	assert.Equal(t, 3, fake.calls)
	for _, o := range got {
		assert.True(t, o.IsTemplate, "generic fallback is flagged as template")
	}
	assert.Contains(t, got[0].Text, "SOL")
	assert.True(t, Validate(got))
}

func TestGenerate_WrappedObjectResponse(t *testing.T) {
	fake := &fakeCompleter{responses: []string{
		`Here you go: {"outcomes": [
			{"key": "A", "text": "good", "category": "positive"},
			{"key": "B", "text": "flat", "category": "neutral"},
			{"key": "C", "text": "bad", "category": "negative"}]}`,
	}}
	gen := NewGenerator(fake)

	ev := listingEvent()
	ev.EventType = "funding"
	got := gen.Generate(context.Background(), ev)
	require.Len(t, got, 3)
	assert.Equal(t, "good", got[0].Text)
}

func TestGenerate_TruncatesLongTexts(t *testing.T) {
	long := strings.Repeat("x", 150)
	fake := &fakeCompleter{responses: []string{
		`[{"key": "A", "text": "` + long + `", "category": "positive"},
		  {"key": "B", "text": "flat", "category": "neutral"},
		  {"key": "C", "text": "bad", "category": "negative"}]`,
	}}
	gen := NewGenerator(fake)

	ev := listingEvent()
	ev.EventType = "governance"
	got := gen.Generate(context.Background(), ev)
	require.Len(t, got, 3)
	assert.Len(t, []rune(got[0].Text), 100)
}

func TestValidate(t *testing.T) {
	base := func() []domain.Outcome {
		return []domain.Outcome{
			{Key: "A", Text: "up", Category: domain.CategoryPositive},
			{Key: "B", Text: "flat", Category: domain.CategoryNeutral},
			{Key: "C", Text: "down", Category: domain.CategoryNegative},
		}
	}

	assert.True(t, Validate(base()))

	t.Run("too few or too many", func(t *testing.T) {
		assert.False(t, Validate(base()[:2]))
		five := append(base(),
			domain.Outcome{Key: "D", Text: "d", Category: domain.CategoryCancelled},
			domain.Outcome{Key: "E", Text: "e", Category: domain.CategoryNeutral},
		)
		assert.False(t, Validate(five))
	})

	t.Run("duplicate keys", func(t *testing.T) {
		dup := base()
		dup[1].Key = "A"
		assert.False(t, Validate(dup))
	})

	t.Run("unknown category", func(t *testing.T) {
		bad := base()
		bad[0].Category = "bullish"
		assert.False(t, Validate(bad))
	})

	t.Run("missing positive", func(t *testing.T) {
		bad := base()
		bad[0].Category = domain.CategoryNeutral
		assert.False(t, Validate(bad))
	})

	t.Run("missing downside", func(t *testing.T) {
		bad := base()
		bad[2].Category = domain.CategoryNeutral
		assert.False(t, Validate(bad))
	})

	t.Run("cancelled counts as downside", func(t *testing.T) {
		ok := base()
		ok[2].Category = domain.CategoryCancelled
		assert.True(t, Validate(ok))
	})

	t.Run("empty fields", func(t *testing.T) {
		bad := base()
		bad[1].Text = ""
		assert.False(t, Validate(bad))
	})
}

func TestHasTemplate(t *testing.T) {
	assert.True(t, HasTemplate("listing"))
	assert.True(t, HasTemplate("airdrop"))
	assert.False(t, HasTemplate("governance"))
	assert.False(t, HasTemplate("other"))
}
