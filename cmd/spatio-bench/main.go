// Command spatio-bench is a small flag-driven example that exercises the
// spatial index (random point inserts and one find_nearby query) against an
// on-disk database.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/sitan2008/spatio"
)

func main() {
	dbPath := flag.String("dir", os.TempDir()+"/spatio-bench", "database directory")
	points := flag.Int("points", 10000, "number of random points to insert")
	precision := flag.Int("precision", spatio.DefaultGeohashPrecision, "geohash precision (1-12)")
	radius := flag.Float64("radius", 5000, "find_nearby search radius in meters")
	flag.Parse()

	cfg, err := spatio.NewConfig().WithGeohashPrecision(*precision)
	if err != nil {
		log.Fatal(err)
	}

	db, err := spatio.OpenWithConfig(*dbPath, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	rng := rand.New(rand.NewSource(1))
	start := time.Now()
	for i := 0; i < *points; i++ {
		lat := rng.Float64()*180 - 90
		lon := rng.Float64()*360 - 180
		p, err := spatio.NewPoint(lat, lon)
		if err != nil {
			log.Fatal(err)
		}
		if err := db.InsertPoint("bench", p, []byte(fmt.Sprintf("point-%d", i))); err != nil {
			log.Fatal(err)
		}
	}
	log.Printf("inserted %d points in %s", *points, time.Since(start))

	center, err := spatio.NewPoint(40.7128, -74.0060)
	if err != nil {
		log.Fatal(err)
	}

	queryStart := time.Now()
	results, err := db.FindNearby("bench", center, *radius, 10)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("find_nearby(%.0fm) -> %d results in %s", *radius, len(results), time.Since(queryStart))

	stats := db.Stats()
	log.Printf("stats: key_count=%d operations_count=%d expired_count=%d",
		stats.KeyCount, stats.OperationsCount, stats.ExpiredCount)
}
