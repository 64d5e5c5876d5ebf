package main

import (
	"context"

	"github.com/ale-nlp/ale/internal/cluster"
	"github.com/ale-nlp/ale/internal/vectorize"
	"github.com/spf13/cobra"
)

var (
	clusterVectorizer string
	clusterSeed       int64
	clusterShowDocs   bool
)

func init() {
	rootCmd.AddCommand(clusterCmd)

	clusterCmd.Flags().StringVar(&clusterVectorizer, "vectorizer", "tfidf", "Document vectors: tfidf or embedding")
	clusterCmd.Flags().Int64Var(&clusterSeed, "seed", 0, "Seed (default: first configured seed)")
	clusterCmd.Flags().BoolVar(&clusterShowDocs, "docs", false, "Include every document's cluster and distance")
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster the corpus and report the selected k",
	Long: `Cluster the corpus the way the k-means teachers do.

k is searched over [2, max(10, 2 x number of labels)] and the k with the
highest silhouette score wins. Useful to inspect cluster sizes before
choosing a cluster-based teacher.`,
	Args: cobra.NoArgs,
	RunE: runCluster,
}

// ClusterResponse is the response for the cluster command.
type ClusterResponse struct {
	Vectorizer string             `json:"vectorizer"`
	Seed       int64              `json:"seed"`
	K          int                `json:"k"`
	Sizes      []int              `json:"sizes"`
	Documents  []cluster.Document `json:"documents,omitempty"`
}

func runCluster(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := mustLoadConfig()
	logger := mustLogger()
	defer logger.Sync()

	seed := cfg.Experiment.Seeds[0]
	if cmd.Flags().Changed("seed") {
		seed = clusterSeed
	}

	s := mustOpenSession(ctx, cfg, logger)
	var v vectorize.Vectorizer
	switch clusterVectorizer {
	case "tfidf":
		v = s.tfidf
	case "embedding":
		emb, provider, err := newEmbeddings(cfg)
		if err != nil {
			exitWithErr("creating embedding vectorizer", err)
		}
		mustValidateEmbeddingModel(ctx, provider)
		v = emb
	default:
		exitWithError(ExitError, "unknown vectorizer %q (valid: tfidf, embedding)", clusterVectorizer)
	}

	docs, err := s.engine.WithSeed(seed).Cluster(ctx, s.corpus, v, len(cfg.Experiment.Labels))
	if err != nil {
		exitWithErr("clustering", err)
	}

	resp := ClusterResponse{
		Vectorizer: clusterVectorizer,
		Seed:       seed,
		K:          docs.NumClusters,
		Sizes:      docs.Sizes(),
	}
	if clusterShowDocs {
		resp.Documents = docs.Docs
	}

	if humanOutput {
		outputHuman("k = %d (%s, seed %d)\n\n", resp.K, resp.Vectorizer, resp.Seed)
		for i, size := range resp.Sizes {
			outputHuman("  cluster %2d: %d documents\n", i, size)
		}
		if clusterShowDocs {
			outputHuman("\n")
			for _, d := range resp.Documents {
				outputHuman("  %d\tcluster %d\tdistance %.4f\n", d.ID, d.Cluster, d.Distance)
			}
		}
	} else {
		outputJSON(resp)
	}
	return nil
}
