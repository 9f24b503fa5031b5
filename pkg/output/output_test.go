package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"techprobe/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *types.AnalysisResult {
	return &types.AnalysisResult{
		URL:      "http://example.com",
		FinalURL: "http://example.com/home",
		Status:   types.StatusSuccess,
		Technologies: []types.DetectionResult{
			{Name: "Nginx", Versions: []string{"1.18.0"}, Confidence: 80, Category: "Web servers",
				Source: "dataset", Sources: []string{"dataset", "wappalyzer"}},
			{Name: "PHP", Confidence: 70, Category: "Programming languages",
				Source: "dataset", Sources: []string{"dataset"}},
		},
		Metadata: types.Metadata{
			Title:      "示例站点",
			StatusCode: 200,
			Duration:   120 * time.Millisecond,
		},
	}
}

func TestGetOutputFormat(t *testing.T) {
	assert.Equal(t, "json", GetOutputFormat(true, "result.txt"))
	assert.Equal(t, "csv", GetOutputFormat(false, "result.CSV"))
	assert.Equal(t, "json", GetOutputFormat(false, "result.json"))
	assert.Equal(t, "txt", GetOutputFormat(false, "result.log"))
	assert.Equal(t, "txt", GetOutputFormat(false, ""))
}

func TestFormatTechList(t *testing.T) {
	s := formatTechList(sampleResult().Technologies)
	assert.Equal(t, "[Nginx/1.18.0(80), PHP(70)]", s)
}

func TestCSVRowsOnePerTechnology(t *testing.T) {
	rows := csvRows(sampleResult())
	require.Len(t, rows, 2)
	assert.Equal(t, "Nginx", rows[0][5])
	assert.Equal(t, "1.18.0", rows[0][6])
	assert.Equal(t, "PHP", rows[1][5])
}

func TestCSVRowsPlaceholderWhenEmpty(t *testing.T) {
	result := sampleResult()
	result.Technologies = nil
	rows := csvRows(result)
	require.Len(t, rows, 1)
	assert.Equal(t, "-", rows[0][5])
}

func TestWriteAnalysisJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, WriteAnalysis(sampleResult(), path, "json"))
	require.NoError(t, CloseFileOutput())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded types.AnalysisResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "http://example.com", decoded.URL)
	require.Len(t, decoded.Technologies, 2)
	assert.Equal(t, "Nginx", decoded.Technologies[0].Name)
}

func TestWriteAnalysisTxtContainsSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.txt")
	require.NoError(t, WriteAnalysis(sampleResult(), path, "txt"))
	require.NoError(t, CloseFileOutput())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "http://example.com")
	assert.Contains(t, content, "Nginx")
	assert.Contains(t, content, "置信度:80")
}
