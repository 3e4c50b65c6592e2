package locate

import (
	"strings"
	"unicode"

	"github.com/PabloGalante/resq-agent/internal/domain"
)

type knownPlace struct {
	key    string
	region domain.Region
}

// knownPlaces is checked in order; the first whole-word match wins.
var knownPlaces = []knownPlace{
	{"pune", domain.Region{City: "Pune", District: "Pune", State: "Maharashtra", Country: "India"}},
	{"vit", domain.Region{City: "Pune City", District: "Pune", State: "Maharashtra", Country: "India"}},
	{"vishwakarma", domain.Region{City: "Pune City", District: "Pune", State: "Maharashtra", Country: "India"}},
	{"mumbai", domain.Region{City: "Mumbai", District: "Mumbai City", State: "Maharashtra", Country: "India"}},
	{"delhi", domain.Region{City: "New Delhi", District: "Central Delhi", State: "Delhi", Country: "India"}},
	{"bangalore", domain.Region{City: "Bengaluru", District: "Bengaluru Urban", State: "Karnataka", Country: "India"}},
	{"bengaluru", domain.Region{City: "Bengaluru", District: "Bengaluru Urban", State: "Karnataka", Country: "India"}},
	{"chennai", domain.Region{City: "Chennai", District: "Chennai", State: "Tamil Nadu", Country: "India"}},
	{"hyderabad", domain.Region{City: "Hyderabad", District: "Hyderabad", State: "Telangana", Country: "India"}},
	{"kolkata", domain.Region{City: "Kolkata", District: "Kolkata", State: "West Bengal", Country: "India"}},
	{"ahmedabad", domain.Region{City: "Ahmedabad", District: "Ahmedabad", State: "Gujarat", Country: "India"}},
	{"lucknow", domain.Region{City: "Lucknow", District: "Lucknow", State: "Uttar Pradesh", Country: "India"}},
	{"jaipur", domain.Region{City: "Jaipur", District: "Jaipur", State: "Rajasthan", Country: "India"}},
	{"chandigarh", domain.Region{City: "Chandigarh", District: "Chandigarh", State: "Chandigarh", Country: "India"}},
	{"amritsar", domain.Region{City: "Amritsar", District: "Amritsar", State: "Punjab", Country: "India"}},
	{"ludhiana", domain.Region{City: "Ludhiana", District: "Ludhiana", State: "Punjab", Country: "India"}},
	{"nagpur", domain.Region{City: "Nagpur City", District: "Nagpur Urban Taluka", State: "Maharashtra", Country: "India"}},
	{"aurangabad", domain.Region{City: "Aurangabad", District: "Aurangabad", State: "Maharashtra", Country: "India"}},
}

// ParseRegion derives city, district and state from a free-text address
// without any network call.
func ParseRegion(address string) domain.Region {
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.UnknownRegion()
	}

	words := strings.FieldsFunc(strings.ToLower(address), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		seen[w] = true
	}
	for _, p := range knownPlaces {
		if seen[p.key] {
			return p.region
		}
	}

	if len(address) <= 3 {
		return domain.UnknownRegion()
	}

	var parts []string
	for _, p := range strings.Split(address, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return domain.UnknownRegion()
	}

	region := domain.UnknownRegion()
	region.City = parts[0]
	region.State = parts[len(parts)-1]
	if len(parts) >= 3 {
		region.District = parts[len(parts)-2]
	}
	return region
}
