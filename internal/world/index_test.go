package world

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIndex(t *testing.T) {
	artifacts := map[string]string{
		"App.tsx":              "import Page from './components/Page';\nexport default function App() { return <Page />; }\n",
		"components/Page.tsx":  "import Chart from './Chart';\nexport default function Page() { return <main><Chart /></main>; }\n",
		"components/Chart.tsx": "export default function Chart() { return <svg />; }\n",
		"styles.css":           ".a { color: red; }\n",
	}

	ix, err := BuildIndex(context.Background(), nil, artifacts)
	require.NoError(t, err)

	assert.Equal(t, []string{"App.tsx", "components/Chart.tsx", "components/Page.tsx", "styles.css"}, ix.Artifacts())
	assert.Nil(t, ix.Module("styles.css"))
	assert.Len(t, ix.Modules(), 3)

	where, ok := ix.DeclaredIn("Chart")
	require.True(t, ok)
	assert.Equal(t, "components/Chart.tsx", where)

	assert.True(t, ix.Present("Page"))
	assert.False(t, ix.Present("Legend"))
	assert.True(t, ix.Nested("Page", "Chart"))
	assert.True(t, ix.Nested("main", "Chart"))
	assert.False(t, ix.Nested("Chart", "Page"))

	got, ok := ix.ResolveImport("components/Page.tsx", "./Chart")
	require.True(t, ok)
	assert.Equal(t, "components/Chart.tsx", got)

	got, ok = ix.ResolveImport("App.tsx", "./styles.css")
	require.True(t, ok)
	assert.Equal(t, "styles.css", got)

	_, ok = ix.ResolveImport("App.tsx", "./Missing")
	assert.False(t, ok)
	_, ok = ix.ResolveImport("App.tsx", "react")
	assert.False(t, ok)
}

func TestBuildIndex_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BuildIndex(ctx, nil, map[string]string{"App.tsx": "export {}"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNilIndexIsEmpty(t *testing.T) {
	var ix *Index
	assert.Empty(t, ix.Artifacts())
	assert.False(t, ix.HasArtifact("App.tsx"))
	assert.False(t, ix.Present("Chart"))
}

func TestAttributeReferences(t *testing.T) {
	assert.True(t, Attribute{Kind: AttrString, Value: "revenue"}.References("revenue"))
	assert.False(t, Attribute{Kind: AttrString, Value: "revenue_total"}.References("revenue"))
	assert.True(t, Attribute{Kind: AttrExpression, Value: "row.revenue"}.References("revenue"))
	assert.True(t, Attribute{Kind: AttrExpression, Value: `d => d["revenue"]`}.References("revenue"))
	assert.False(t, Attribute{Kind: AttrExpression, Value: "row.revenueTotal"}.References("revenue"))
	assert.False(t, Attribute{Kind: AttrBare}.References("revenue"))
}
