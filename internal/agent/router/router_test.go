package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/telmi-agent/server/internal/agent/model"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return f.reply, f.err
}

func TestClassifyDataQuery(t *testing.T) {
	r := New(&fakeCompleter{reply: `{"query_type":"data_query","language":"fr","confidence":0.95,"reasoning":"asks for counts"}`})
	cls := r.Classify(context.Background(), "combien de demandes cette semaine ?")

	assert.Equal(t, model.RouteDataQuery, cls.Route)
	assert.Equal(t, "fr", cls.Language)
	assert.InDelta(t, 0.95, cls.Confidence, 0.001)
}

func TestClassifyFencedResponse(t *testing.T) {
	r := New(&fakeCompleter{reply: "```json\n{\"query_type\":\"schema_request\",\"language\":\"en\",\"confidence\":0.9,\"reasoning\":\"\"}\n```"})
	cls := r.Classify(context.Background(), "what tables are available?")

	assert.Equal(t, model.RouteSchemaRequest, cls.Route)
}

func TestClassifyFallbackOnError(t *testing.T) {
	r := New(&fakeCompleter{err: errors.New("upstream timeout")})

	cls := r.Classify(context.Background(), "quelles tables sont disponibles ?")
	assert.Equal(t, model.RouteSchemaRequest, cls.Route)
	assert.Equal(t, "keyword fallback", cls.Rationale)

	cls = r.Classify(context.Background(), "help, what can you do?")
	assert.Equal(t, model.RouteHelpRequest, cls.Route)

	cls = r.Classify(context.Background(), "top 5 maisons par demandes")
	assert.Equal(t, model.RouteDataQuery, cls.Route)
}

func TestClassifyFallbackOnGarbage(t *testing.T) {
	r := New(&fakeCompleter{reply: "I cannot classify this."})
	cls := r.Classify(context.Background(), "nombre d'usagers par région")

	assert.Equal(t, model.RouteDataQuery, cls.Route)
}

func TestClassifyUnknownRouteFromModel(t *testing.T) {
	r := New(&fakeCompleter{reply: `{"query_type":"chitchat","language":"en","confidence":0.8,"reasoning":""}`})
	cls := r.Classify(context.Background(), "show me demand volumes")

	assert.Equal(t, model.RouteDataQuery, cls.Route)
	assert.Equal(t, "keyword fallback", cls.Rationale)
}

func TestClassifyNormalizesSpelledOutLanguage(t *testing.T) {
	r := New(&fakeCompleter{reply: `{"query_type":"data_query","language":"french","confidence":0.9,"reasoning":""}`})
	cls := r.Classify(context.Background(), "combien de demandes ?")
	assert.Equal(t, "fr", cls.Language)

	r = New(&fakeCompleter{reply: `{"query_type":"data_query","language":"english","confidence":0.9,"reasoning":""}`})
	cls = r.Classify(context.Background(), "how many requests?")
	assert.Equal(t, "en", cls.Language)

	r = New(&fakeCompleter{reply: `{"query_type":"data_query","language":"klingon","confidence":0.9,"reasoning":""}`})
	cls = r.Classify(context.Background(), "monthly demand trend")
	assert.Equal(t, "en", cls.Language)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "fr", detectLanguage("Combien de demandes pour la région Bretagne ?"))
	assert.Equal(t, "fr", detectLanguage("évolution mensuelle"))
	assert.Equal(t, "en", detectLanguage("monthly demand trend"))
}
