package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/offsite"
)

// buildOffsiteMirror returns nil unless TB_S3_MIRROR is set. Snapshots and
// archives are mirrored; tick logs stay local.
func buildOffsiteMirror(dataDir string, logger *log.Logger) (*offsite.Mirror, error) {
	if !envBool("TB_S3_MIRROR", false) {
		return nil, nil
	}
	cfg, ok := offsite.ConfigFromEnv()
	if !ok {
		return nil, fmt.Errorf("TB_S3_MIRROR=true but TB_S3_ENDPOINT is not set")
	}
	client, err := offsite.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimSpace(os.Getenv("TB_S3_PREFIX"))
	return offsite.NewMirror(client, dataDir, prefix, envInt("TB_S3_UPLOAD_WORKERS", 2), 256, logger), nil
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
