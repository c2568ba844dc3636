package tools

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appliance-router/server/internal/agent/llm"
	"github.com/appliance-router/server/internal/agent/model"
	errx "github.com/appliance-router/server/internal/core/error"
)

const base = "https://www.partselect.com/Models/WDT780SAEM1"

func decision(key model.HelpIntent, details string) *model.RoutingDecision {
	return &model.RoutingDecision{
		HandlerKey: key,
		Source:     model.DecisionOracle,
		Context: model.RoutingContext{
			BaseURL:    base,
			Identifier: "WDT780SAEM1",
			HelpIntent: string(key),
			Details:    details,
			Category:   model.CategoryDishwasher,
		},
	}
}

func fixed(out string, err error) llm.Generator {
	return llm.GeneratorFunc(func(ctx context.Context, prompt string, history []*schema.Message) (string, error) {
		return out, err
	})
}

func newDispatcher(t *testing.T, gen llm.Generator) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(context.Background(), DefaultRegistry(gen), time.Second, nil)
	require.NoError(t, err)
	return d
}

func TestDispatch_Manual(t *testing.T) {
	d := newDispatcher(t, nil)

	res, err := d.Dispatch(context.Background(), decision(model.HelpManual, ""))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Response, base)
	assert.Contains(t, res.Response, "dishwasher model WDT780SAEM1")
}

func TestDispatch_PartsUsesRefinedSearchTerm(t *testing.T) {
	d := newDispatcher(t, fixed(" Door Gasket. ", nil))

	res, err := d.Dispatch(context.Background(), decision(model.HelpParts, "the rubber seal around my door"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Response, base+"/Parts/?SearchTerm=door+gasket")
}

func TestDispatch_PartsFallsBackToDetails(t *testing.T) {
	d := newDispatcher(t, fixed("", errors.New("oracle down")))

	res, err := d.Dispatch(context.Background(), decision(model.HelpParts, "ice maker"))
	require.NoError(t, err)
	assert.Contains(t, res.Response, "SearchTerm=ice+maker")
}

func TestDispatch_Symptoms(t *testing.T) {
	d := newDispatcher(t, fixed("not draining", nil))

	res, err := d.Dispatch(context.Background(), decision(model.HelpSymptoms, "water stays at the bottom"))
	require.NoError(t, err)
	assert.Contains(t, res.Response, `"not draining"`)
	assert.Contains(t, res.Response, base+"/Symptoms/")
}

func TestDispatch_Installation(t *testing.T) {
	d := newDispatcher(t, nil)

	res, err := d.Dispatch(context.Background(), decision(model.HelpInstallation, ""))
	require.NoError(t, err)
	assert.Contains(t, res.Response, base+"/Installation/")
}

func TestDispatch_MissingIdentifierIsUnsuccessful(t *testing.T) {
	d := newDispatcher(t, nil)
	dec := decision(model.HelpManual, "")
	dec.Context.Identifier = "  "

	res, err := d.Dispatch(context.Background(), dec)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, missingModelReply, res.Response)
}

func TestDispatch_UnknownHandler(t *testing.T) {
	d := newDispatcher(t, nil)

	_, err := d.Dispatch(context.Background(), decision(model.HelpIntent("warranty"), ""))
	require.ErrorIs(t, err, ErrUnknownHandler)
}

func failing(name string) tool.InvokableTool {
	return utils.NewTool(&schema.ToolInfo{Name: name, Desc: "always fails", ParamsOneOf: routingParams()},
		func(ctx context.Context, in *model.RoutingContext) (*model.HandlerResult, error) {
			return nil, errors.New("upstream unavailable")
		})
}

func TestDispatch_HandlerFailureIsWrapped(t *testing.T) {
	r := DefaultRegistry(nil)
	r.Register(model.HelpManual, failing("broken_manual"))
	d, err := NewDispatcher(context.Background(), r, time.Second, nil)
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), decision(model.HelpManual, ""))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, errx.StatusOf(err))
}

func TestFailureReply(t *testing.T) {
	assert.Contains(t, FailureReply(base), base)
	assert.Contains(t, FailureReply(""), "try again")
}
