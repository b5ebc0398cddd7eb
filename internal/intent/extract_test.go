package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avvvet/rhoai-intent/internal/models"
)

func TestExtractReplicas(t *testing.T) {
	for in, want := range map[string]int{
		"scale x to 4 replicas":     4,
		"scale x to 6 pods":         6,
		"run 3 instances":           3,
		"scale x to three replicas": 3,
		"deploy with zero replicas": 0,
		"deploy with ten instances": 10,
	} {
		got := extractReplicas(in)
		if assert.NotNil(t, got, in) {
			assert.Equal(t, want, got.IntValue(), in)
		}
	}

	assert.Nil(t, extractReplicas("scale x up"))
}

func TestExtractMemory(t *testing.T) {
	for in, want := range map[string]string{
		"a notebook with 4gb ram":       "4Gi",
		"a notebook with 8g of memory":  "8Gi",
		"a notebook with 512mi":         "512Mi",
		"a notebook using 16gi":         "16Gi",
		"a notebook that needs 2gb":     "2Gi",
		"a notebook with 2 gpus":        "",
		"a notebook for a few minutes":  "",
		"a notebook with 4 cpus and 1g": "1Gi",
	} {
		assert.Equal(t, want, extractMemory(in), in)
	}
}

func TestExtractGPU(t *testing.T) {
	for in, want := range map[string]int{
		"with 2 gpus":        2,
		"using 1 gpu":        1,
		"with gpu support":   1,
		"gpu enabled please": 1,
		"no gpu support":     0,
		"without gpu":        0,
	} {
		got, ok := extractGPU(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := extractGPU("a plain notebook")
	assert.False(t, ok)
}

func TestExtractImage(t *testing.T) {
	for in, want := range map[string]string{
		"create a notebook with image quay.io/org/nb:1.2": "quay.io/org/nb:1.2",
		"a PyTorch notebook":                              "pytorch/pytorch:latest",
		"a python and tensorflow notebook":                "tensorflow/tensorflow:latest-jupyter",
		"an R notebook":                                   "jupyter/r-notebook:latest",
		"a julia notebook":                                "jupyter/julia-notebook:latest",
		"a data science notebook":                         "jupyter/datascience-notebook:latest",
		"create a notebook for the team":                  "",
	} {
		assert.Equal(t, want, extractImage(in), in)
	}
}

func TestExtractRole(t *testing.T) {
	for in, want := range map[string]string{
		"give bob write access":          "edit",
		"grant bob read access":          "view",
		"add carol as a viewer":          "view",
		"make dan an owner":              "admin",
		"add erin as administrator":      "admin",
		"add frank, he is already there": "",
		"add gina to the credit project": "",
	} {
		assert.Equal(t, want, extractRole(in), in)
	}
}

func TestExtractNames(t *testing.T) {
	t.Run("model", func(t *testing.T) {
		for in, want := range map[string]string{
			"deploy a model called churn-v2":         "churn-v2",
			"scale down fraud to 1 replica":          "fraud",
			"delete the churn model":                 "churn",
			"what is the status of my ranker":        "ranker",
			"why is my ranker failing":               "ranker",
			"show logs for the ranker":               "ranker",
			"performance of my ranker":               "ranker",
			"diagnose performance issues with churn": "churn",
			"deploy 12 now":                          "",
		} {
			assert.Equal(t, want, extractModelName(in), in)
		}
	})

	t.Run("namespace", func(t *testing.T) {
		for in, want := range map[string]string{
			"list models in ml-prod namespace":       "ml-prod",
			"list models for namespace team-a":       "team-a",
			"list models in the staging environment": "staging",
			"list models in the research project":    "research",
			"list models":                            "",
		} {
			assert.Equal(t, want, extractNamespace(in), in)
		}
	})

	t.Run("username", func(t *testing.T) {
		for in, want := range map[string]string{
			"give bob.smith access to risk":     "bob.smith",
			"add user carol to risk":            "carol",
			"please onboard dan@example.com.":   "dan@example.com",
			"grant access to erin@example.com.": "erin@example.com",
		} {
			assert.Equal(t, want, extractUsername(in), in)
		}
	})

	t.Run("schedule", func(t *testing.T) {
		for in, want := range map[string]string{
			"update the etl pipeline to run every 2 hours": "2 hours",
			"run the etl pipeline daily":                   "daily",
			"change the etl pipeline schedule to nightly":  "nightly",
		} {
			assert.Equal(t, want, extractSchedule(in), in)
		}
	})

	t.Run("time range", func(t *testing.T) {
		for in, want := range map[string]string{
			"compare churn to yesterday":         "yesterday",
			"compare churn over the last 7 days": "last 7 days",
			"errors for churn in the past month": "past month",
			"compare churn performance to today": "today",
			"compare churn":                      "",
		} {
			assert.Equal(t, want, extractTimeRange(in), in)
		}
	})
}

func TestResolveModel(t *testing.T) {
	history := []models.ConversationMessage{
		{Role: "user", Content: "Deploy the fraud-detector model"},
		{Role: "assistant", Content: "Deployment started."},
		{Role: "assistant", Content: "Here is the status of ranker: Ready"},
		{Role: "user", Content: "thanks"},
	}
	assert.Equal(t, "ranker", ResolveModel(history))
	assert.Equal(t, "fraud-detector", ResolveModel(history[:2]))
	assert.Equal(t, "", ResolveModel([]models.ConversationMessage{{Role: "user", Content: "hello"}}))
	assert.Equal(t, "", ResolveModel(nil))
}

func TestScore(t *testing.T) {
	for name, tc := range map[string]struct {
		action  models.Action
		params  models.Parameters
		query   string
		context bool
		want    float64
	}{
		"list":                      {models.ActionListModels, models.Parameters{}, "list models", false, 0.7},
		"list with namespace":       {models.ActionListNotebooks, models.Parameters{Namespace: "a"}, "list notebooks", false, 0.8},
		"no name no preposition":    {models.ActionDeleteModel, models.Parameters{}, "delete it now", false, 0.3},
		"no name with preposition":  {models.ActionDeleteModel, models.Parameters{}, "delete one with care", false, 0.5},
		"name":                      {models.ActionGetStatus, models.Parameters{ModelName: "m"}, "status m", false, 0.7},
		"deploy with storage":       {models.ActionDeployModel, models.Parameters{ModelName: "m", StorageURI: "s3://b"}, "deploy m", false, 0.8},
		"scale with replicas":       {models.ActionScaleModel, models.Parameters{ModelName: "m", Replicas: models.IntReplicas(0)}, "scale m", false, 0.9},
		"pipeline from source":      {models.ActionCreatePipeline, models.Parameters{}, "create a pipeline over the source", false, 0.5},
		"notebook with image":       {models.ActionCreateNotebook, models.Parameters{NotebookName: "n", Image: "i"}, "create n", false, 0.8},
		"project with limit":        {models.ActionCreateProject, models.Parameters{ProjectName: "p", CPULimit: "2"}, "create p", false, 0.8},
		"add user partial":          {models.ActionAddUserToProject, models.Parameters{Username: "u"}, "add u", false, 0.3},
		"add user role only":        {models.ActionAddUserToProject, models.Parameters{Username: "u", Role: "edit"}, "add u", false, 0.4},
		"project resources":         {models.ActionGetProjectResources, models.Parameters{ProjectName: "p"}, "usage p", false, 0.8},
		"context and namespace":     {models.ActionScaleModel, models.Parameters{ModelName: "m", Replicas: models.IntReplicas(1), Namespace: "n"}, "scale it", true, 1.0},
		"monitoring with namespace": {models.ActionAnalyzeLogs, models.Parameters{ModelName: "m", Namespace: "n"}, "logs m", false, 0.8},
	} {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Score(tc.action, tc.params, tc.query, tc.context), 1e-9)
		})
	}
}
