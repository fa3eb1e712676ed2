package location

import (
	"context"
	"fmt"
	"log/slog"
)

func pillar(zone Zone, n int, seats, outlets int) Location {
	num := n
	return Location{
		ID:              fmt.Sprintf("P%02d_%s", n, zone),
		Zone:            zone,
		Number:          &num,
		Name:            fmt.Sprintf("Pillar %s%d", zone, n),
		Type:            TypePillar,
		SeatingCapacity: seats,
		PowerOutlets:    outlets,
		WiFi:            true,
		FreeSpace:       true,
		Active:          true,
	}
}

func freeSpace(n int, name string, typ Type, seats, outlets int, wifi bool) Location {
	num := n
	return Location{
		ID:              fmt.Sprintf("FS_%02d", n),
		Zone:            ZoneFreeSpace,
		Number:          &num,
		Name:            name,
		Type:            typ,
		SeatingCapacity: seats,
		PowerOutlets:    outlets,
		WiFi:            wifi,
		FreeSpace:       true,
		Active:          true,
	}
}

// DefaultCampus is the location set loaded at startup.
func DefaultCampus() []Location {
	var locs []Location
	for _, zone := range []Zone{ZoneA, ZoneB, ZoneC} {
		for n := 1; n <= 4; n++ {
			locs = append(locs, pillar(zone, n, 8, 4))
		}
	}
	return append(locs,
		freeSpace(1, "Library Commons", TypeStudyArea, 60, 30, true),
		freeSpace(2, "Quiet Reading Room", TypeStudyArea, 24, 12, true),
		freeSpace(3, "Student Lounge", TypeCommonArea, 40, 10, true),
		freeSpace(4, "Courtyard", TypeCommonArea, 30, 0, false),
	)
}

// Seed upserts locs into repo. Existing derived values are preserved.
func Seed(ctx context.Context, repo Repository, locs []Location) error {
	for i := range locs {
		if err := repo.Upsert(ctx, &locs[i]); err != nil {
			return fmt.Errorf("seed location %s: %w", locs[i].ID, err)
		}
	}
	slog.InfoContext(ctx, "locations seeded", "count", len(locs))
	return nil
}
