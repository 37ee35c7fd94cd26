package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestParseImportArg(t *testing.T) {
	t.Run("valid argument", func(t *testing.T) {
		chatID, path, err := parseImportArg("42=/data/export.json")
		require.NoError(t, err)
		assert.Equal(t, int64(42), chatID)
		assert.Equal(t, "/data/export.json", path)
	})

	t.Run("negative chat id", func(t *testing.T) {
		chatID, path, err := parseImportArg("-100500=/data/export.json")
		require.NoError(t, err)
		assert.Equal(t, int64(-100500), chatID)
		assert.Equal(t, "/data/export.json", path)
	})

	t.Run("path containing equals sign", func(t *testing.T) {
		chatID, path, err := parseImportArg("7=/data/a=b.json")
		require.NoError(t, err)
		assert.Equal(t, int64(7), chatID)
		assert.Equal(t, "/data/a=b.json", path)
	})

	t.Run("missing separator", func(t *testing.T) {
		_, _, err := parseImportArg("/data/export.json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chat_id=path")
	})

	t.Run("non-numeric chat id", func(t *testing.T) {
		_, _, err := parseImportArg("family=/data/export.json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid chat id")
	})
}

func TestPipelineFlags(t *testing.T) {
	findDuration := func(t *testing.T, name string) *cli.DurationFlag {
		t.Helper()
		for _, flag := range pipelineFlags() {
			if f, ok := flag.(*cli.DurationFlag); ok && f.Name == name {
				return f
			}
		}
		t.Fatalf("flag %s not found", name)
		return nil
	}

	t.Run("session-gap defaults to two hours", func(t *testing.T) {
		assert.Equal(t, 2*time.Hour, findDuration(t, "session-gap").Value)
	})

	t.Run("late-grace defaults to thirty seconds", func(t *testing.T) {
		assert.Equal(t, 30*time.Second, findDuration(t, "late-grace").Value)
	})

	t.Run("pacing defaults to five seconds", func(t *testing.T) {
		assert.Equal(t, 5*time.Second, findDuration(t, "pacing").Value)
	})

	t.Run("batch-size defaults to 64", func(t *testing.T) {
		var batchFlag *cli.IntFlag
		for _, flag := range pipelineFlags() {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "batch-size" {
				batchFlag = f
				break
			}
		}
		require.NotNil(t, batchFlag)
		assert.Equal(t, 64, batchFlag.Value)
	})
}

func TestEmbeddingFlags(t *testing.T) {
	t.Run("embedding-host has default value", func(t *testing.T) {
		var hostFlag *cli.StringFlag
		for _, flag := range embeddingFlags() {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "embedding-host" {
				hostFlag = f
				break
			}
		}
		require.NotNil(t, hostFlag)
		assert.Equal(t, "http://localhost:11434/v1", hostFlag.Value)
	})

	t.Run("embedding-host has no EnvVars", func(t *testing.T) {
		var hostFlag *cli.StringFlag
		for _, flag := range embeddingFlags() {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "embedding-host" {
				hostFlag = f
				break
			}
		}
		require.NotNil(t, hostFlag)
		assert.Empty(t, hostFlag.EnvVars)
	})
}

func TestConcat(t *testing.T) {
	flags := concat(queueFlags(), indexFlags())
	assert.Len(t, flags, len(queueFlags())+len(indexFlags()))
}
