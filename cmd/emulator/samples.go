package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
)

type sampleItem struct {
	title       string
	description string
	category    string
	attributes  models.Attributes
}

type sampleCity struct {
	name string
	lon  float64
	lat  float64
}

var (
	sampleItems = []sampleItem{
		{"Phone", "Black phone in a leather case", "electronics", models.Attributes{Color: "black", Brand: "Samsung", Model: "Galaxy S21"}},
		{"Wallet", "Brown leather wallet with cards inside", "wallets", models.Attributes{Color: "brown", Brand: "Wittchen"}},
		{"Keys", "House keys with a BMW keychain", "keys", models.Attributes{Color: "silver", Brand: "BMW"}},
		{"Backpack", "Blue backpack with a laptop sleeve", "bags", models.Attributes{Color: "blue", Brand: "Herschel", Model: "Little America"}},
		{"Headphones", "Wireless headphones in a charging case", "electronics", models.Attributes{Color: "white", Brand: "Sony", Model: "WF-1000XM4"}},
		{"Watch", "Silver watch with a metal band", "jewelry", models.Attributes{Color: "silver", Brand: "Citizen"}},
		{"Umbrella", "Folding umbrella with a floral pattern", "accessories", models.Attributes{Color: "purple"}},
		{"Jacket", "Green jacket, size L", "clothing", models.Attributes{Color: "green", Brand: "North Face"}},
	}

	sampleCities = []sampleCity{
		{"Warszawa", 21.0122, 52.2297},
		{"Kraków", 19.9450, 50.0647},
		{"Gdańsk", 18.6466, 54.3520},
		{"Wrocław", 17.0385, 51.1079},
		{"Poznań", 16.9252, 52.4064},
	}
)

// samplePair builds a lost report and a found report describing the same item
func samplePair(rng *rand.Rand, now time.Time) (lost, found *models.Report) {
	item := sampleItems[rng.Intn(len(sampleItems))]
	city := sampleCities[rng.Intn(len(sampleCities))]

	lostAt := now.Add(-time.Duration(24+rng.Intn(48)) * time.Hour)
	foundAt := lostAt.Add(time.Duration(rng.Intn(36)) * time.Hour)

	lost = sampleReport(models.ReportKindLost, item, city, lostAt, 0, now)
	lost.Title = "Lost " + item.title

	// Found within a few hundred metres
	found = sampleReport(models.ReportKindFound, item, city, foundAt, rng.Float64()*0.004, now)
	found.Title = "Found " + item.title

	return lost, found
}

// sampleReport builds one active report; offset shifts the coordinates in degrees
func sampleReport(kind models.ReportKind, item sampleItem, city sampleCity, eventAt time.Time, offset float64, now time.Time) *models.Report {
	return &models.Report{
		ID:          uuid.New().String(),
		Kind:        kind,
		OwnerID:     fmt.Sprintf("user-%s", uuid.New().String()[:8]),
		Title:       item.title,
		Description: item.description,
		Category:    item.category,
		Attributes:  item.attributes,
		Location: models.Location{
			City:        city.name,
			Coordinates: &models.Coordinates{Longitude: city.lon + offset, Latitude: city.lat + offset},
		},
		EventDate: &eventAt,
		Status:    models.ReportStatusActive,
		CreatedAt: now,
	}
}
