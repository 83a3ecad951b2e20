package ledger

import (
	"time"

	"github.com/talgya/neurobank/internal/staking"
	"github.com/talgya/neurobank/internal/valuation"
)

func seedWallet(address string) Wallet {
	return Wallet{
		Address:                  address,
		DataSubmissions:          8,
		ResearchContributions:    3,
		LifetimeEarnings:         26_000,
		DataQualityScore:         94.2,
		ResearchImpactScore:      8.7,
		TotalSessionsContributed: 23,
		AcceptedSubmissions:      21,
	}
}

func seedProjects(now time.Time) []*ResearchProject {
	days := func(n int) time.Time { return now.AddDate(0, 0, n) }
	cats := func(c ...valuation.Category) []valuation.Category { return c }
	return []*ResearchProject{
		{
			ID:          "rp-001",
			Title:       "Meditation State Recognition for Indian Practices",
			Institution: "AIIMS Neuroscience Department",
			Researcher:  "Dr. Priya Sharma",
			Description: "Training AI models to recognize Vipassana, Transcendental, and other Indian meditation states from EEG patterns.",
			Category:    "neuroscience",
			Budget:      50_000,
			Deadline:    days(30),
			Requirements: Requirements{
				MinDuration:  300,
				Categories:   cats(valuation.CategoryMeditation),
				MinQuality:   valuation.TierStandard,
				SampleSize:   100,
				Demographics: []string{"18-65"},
			},
			Rewards:     Rewards{PerSubmission: 650, BonusThreshold: 10, BonusAmount: 2000},
			Status:      ProjectActive,
			Submissions: 34,
			Verified:    true,
		},
		{
			ID:          "rp-002",
			Title:       "Cognitive Enhancement Research",
			Institution: "IIT Delhi Cognitive Science Lab",
			Researcher:  "Prof. Rajesh Kumar",
			Description: "Studying cognitive enhancement effects of Brahmi, Shankhpushpi and other Ayurvedic nootropics on brain function.",
			Category:    "psychology",
			Budget:      35_000,
			Deadline:    days(45),
			Requirements: Requirements{
				MinDuration: 600,
				Categories:  cats(valuation.CategoryGaming, valuation.CategoryFocus),
				MinQuality:  valuation.TierPremium,
				SampleSize:  50,
			},
			Rewards:     Rewards{PerSubmission: 1000, BonusThreshold: 5, BonusAmount: 4000},
			Status:      ProjectActive,
			Submissions: 12,
			Verified:    true,
		},
		{
			ID:          "rp-003",
			Title:       "Sleep and Ayurvedic Medicine Study",
			Institution: "NIMHANS Sleep Research Center",
			Researcher:  "Dr. Sunita Verma",
			Description: "Testing Ayurvedic sleep formulations (Jatamansi, Tagar) against insomnia using EEG sleep analysis.",
			Category:    "medical",
			Budget:      75_000,
			Deadline:    days(60),
			Requirements: Requirements{
				MinDuration: 1800,
				Categories:  cats(valuation.CategorySleep),
				MinQuality:  valuation.TierPremium,
				SampleSize:  200,
			},
			Rewards:     Rewards{PerSubmission: 1200, BonusThreshold: 15, BonusAmount: 6000},
			Status:      ProjectActive,
			Submissions: 67,
			Verified:    true,
		},
		{
			ID:          "rp-004",
			Title:       "Stress Management through Ayurvedic Interventions",
			Institution: "ICMR Bangalore",
			Researcher:  "Dr. Anjali Nair",
			Description: "Testing Ashwagandha, Jatamansi, and Brahmi for stress reduction using EEG biomarkers in working professionals.",
			Category:    "wellness",
			Budget:      40_000,
			Deadline:    days(35),
			Requirements: Requirements{
				MinDuration: 450,
				Categories:  cats(valuation.CategoryStress, valuation.CategoryLearning),
				MinQuality:  valuation.TierStandard,
				SampleSize:  80,
			},
			Rewards:     Rewards{PerSubmission: 800, BonusThreshold: 8, BonusAmount: 3200},
			Status:      ProjectActive,
			Submissions: 23,
			Verified:    true,
		},
		{
			ID:          "rp-005",
			Title:       "Traditional Yoga and Modern Neuroscience",
			Institution: "IISc Bangalore Neuroscience Unit",
			Researcher:  "Prof. Kavita Gupta",
			Description: "Studying the neurological effects of traditional Yoga practices (Pranayama, Asanas) using modern EEG analysis.",
			Category:    "ai-training",
			Budget:      60_000,
			Deadline:    days(50),
			Requirements: Requirements{
				MinDuration: 900,
				Categories:  cats(valuation.CategoryFocus, valuation.CategoryLearning),
				MinQuality:  valuation.TierPremium,
				SampleSize:  120,
			},
			Rewards:     Rewards{PerSubmission: 1000, BonusThreshold: 12, BonusAmount: 5000},
			Status:      ProjectActive,
			Submissions: 45,
			Verified:    true,
		},
		{
			ID:          "rp-006",
			Title:       "Mindfulness in Indian Educational Settings",
			Institution: "Jawaharlal Nehru University",
			Researcher:  "Dr. Meera Patel",
			Description: "Integrating traditional Indian mindfulness practices with modern educational methods using EEG feedback.",
			Category:    "psychology",
			Budget:      45_000,
			Deadline:    days(40),
			Requirements: Requirements{
				MinDuration: 600,
				Categories:  cats(valuation.CategoryMeditation, valuation.CategoryFocus),
				MinQuality:  valuation.TierStandard,
				SampleSize:  90,
			},
			Rewards:     Rewards{PerSubmission: 800, BonusThreshold: 10, BonusAmount: 4000},
			Status:      ProjectActive,
			Submissions: 28,
			Verified:    true,
		},
	}
}

func seedPools() []*StakePool {
	return []*StakePool{
		{
			ID:          "pool-research",
			Name:        "Research Funding Pool",
			APY:         12.5,
			LockPeriod:  90,
			MinStake:    1000,
			TotalStaked: 2_500_000,
			Rewards:     "Fund new research projects + governance rights",
			Category:    staking.PoolResearch,
		},
		{
			ID:          "pool-validation",
			Name:        "Data Validation Pool",
			APY:         8.7,
			LockPeriod:  30,
			MinStake:    500,
			TotalStaked: 1_200_000,
			Rewards:     "Earn from validating data quality",
			Category:    staking.PoolValidation,
		},
		{
			ID:          "pool-governance",
			Name:        "Governance Pool",
			APY:         15.2,
			LockPeriod:  180,
			MinStake:    2000,
			TotalStaked: 800_000,
			Rewards:     "Vote on ecosystem decisions + premium rewards",
			Category:    staking.PoolGovernance,
		},
	}
}

func seedRequests(now time.Time) []*ResearchRequest {
	days := func(n int) time.Time { return now.AddDate(0, 0, n) }
	return []*ResearchRequest{
		{
			ID:             "req-001",
			Title:          "Meditation States Research",
			Researcher:     "Dr. Neural Labs",
			Criteria:       Criteria{MentalState: "meditation", MinDuration: 300, DeviceType: "BrainBit"},
			Compensation:   50,
			Currency:       "SKY",
			Status:         RequestActive,
			Submissions:    12,
			MaxSubmissions: 100,
			ExpiresAt:      days(30),
		},
		{
			ID:             "req-002",
			Title:          "Gaming Focus Patterns",
			Researcher:     "GameBrain Research",
			Criteria:       Criteria{MentalState: "focused", MinDuration: 600, DeviceType: AnyDevice},
			Compensation:   75,
			Currency:       "SKY",
			Status:         RequestActive,
			Submissions:    8,
			MaxSubmissions: 50,
			ExpiresAt:      days(21),
		},
	}
}
