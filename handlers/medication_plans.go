package handlers

// suggestionPlan is the general-purpose plan template assigned to one age
// group by the system generator.
type suggestionPlan struct {
	Medications []medicationItem `json:"medications"`
	Dietary     []dietaryEntry   `json:"dietary"`
	Nutritions  nutritionSplit   `json:"nutritions"`
	Monitoring  []monitoringTask `json:"monitoring"`
	EnergyGoal  float64          `json:"energy_goal"`
	BMIGoal     float64          `json:"bmi_goal"`
	Hydration   string           `json:"hydration"`
	Sleep       string           `json:"sleep"`
}

type medicationItem struct {
	Name   string   `json:"name"`
	Amount string   `json:"amount"`
	Times  []string `json:"times"`
}

type dietaryEntry struct {
	Time   string  `json:"time"`
	Energy float64 `json:"energy"`
}

type nutritionSplit struct {
	Carbs   float64 `json:"carbs"`
	Protein float64 `json:"protein"`
	Fat     float64 `json:"fat"`
}

type monitoringTask struct {
	Name  string   `json:"name"`
	Times []string `json:"times"`
}

type exerciseItem struct {
	Name     string `json:"name"`
	Duration string `json:"duration"`
	Times    string `json:"times"`
}

var generalExercises = []exerciseItem{
	{Name: "Brisk Walking", Duration: "30 minutes", Times: "daily"},
	{Name: "Stretching", Duration: "10 minutes", Times: "morning"},
	{Name: "Cycling", Duration: "20 minutes", Times: "3 times a week"},
}

var suggestionPlans = map[string]suggestionPlan{
	"child": {
		Medications: []medicationItem{
			{Name: "Multivitamin Syrup", Amount: "5 ml", Times: []string{"morning"}},
		},
		Dietary: []dietaryEntry{
			{Time: "breakfast", Energy: 400},
			{Time: "lunch", Energy: 550},
			{Time: "snacks", Energy: 200},
			{Time: "dinner", Energy: 450},
		},
		Nutritions: nutritionSplit{Carbs: 55, Protein: 20, Fat: 25},
		Monitoring: []monitoringTask{
			{Name: "Blood Glucose", Times: []string{"before breakfast"}},
		},
		EnergyGoal: 1600,
		BMIGoal:    17.5,
		Hydration:  "6-8 glasses of water",
		Sleep:      "9-11 hours",
	},
	"teen": {
		Medications: []medicationItem{
			{Name: "Multivitamin", Amount: "1 tablet", Times: []string{"morning"}},
		},
		Dietary: []dietaryEntry{
			{Time: "breakfast", Energy: 500},
			{Time: "lunch", Energy: 700},
			{Time: "snacks", Energy: 300},
			{Time: "dinner", Energy: 600},
		},
		Nutritions: nutritionSplit{Carbs: 50, Protein: 25, Fat: 25},
		Monitoring: []monitoringTask{
			{Name: "Blood Glucose", Times: []string{"before breakfast", "after dinner"}},
		},
		EnergyGoal: 2100,
		BMIGoal:    21,
		Hydration:  "8 glasses of water",
		Sleep:      "8-10 hours",
	},
	"adult": {
		Medications: []medicationItem{
			{Name: "Metformin", Amount: "500 mg", Times: []string{"morning", "night"}},
		},
		Dietary: []dietaryEntry{
			{Time: "breakfast", Energy: 450},
			{Time: "lunch", Energy: 650},
			{Time: "snacks", Energy: 250},
			{Time: "dinner", Energy: 550},
		},
		Nutritions: nutritionSplit{Carbs: 45, Protein: 30, Fat: 25},
		Monitoring: []monitoringTask{
			{Name: "Blood Glucose", Times: []string{"before breakfast", "after lunch", "after dinner"}},
			{Name: "Blood Pressure", Times: []string{"morning"}},
		},
		EnergyGoal: 1900,
		BMIGoal:    22.5,
		Hydration:  "8-10 glasses of water",
		Sleep:      "7-9 hours",
	},
	"middle_aged": {
		Medications: []medicationItem{
			{Name: "Metformin", Amount: "850 mg", Times: []string{"morning", "night"}},
			{Name: "Atorvastatin", Amount: "10 mg", Times: []string{"night"}},
		},
		Dietary: []dietaryEntry{
			{Time: "breakfast", Energy: 400},
			{Time: "lunch", Energy: 600},
			{Time: "snacks", Energy: 200},
			{Time: "dinner", Energy: 500},
		},
		Nutritions: nutritionSplit{Carbs: 40, Protein: 30, Fat: 30},
		Monitoring: []monitoringTask{
			{Name: "Blood Glucose", Times: []string{"before breakfast", "after lunch", "after dinner"}},
			{Name: "Blood Pressure", Times: []string{"morning", "night"}},
		},
		EnergyGoal: 1700,
		BMIGoal:    23,
		Hydration:  "8-10 glasses of water",
		Sleep:      "7-8 hours",
	},
	"senior": {
		Medications: []medicationItem{
			{Name: "Metformin", Amount: "500 mg", Times: []string{"morning"}},
			{Name: "Calcium + Vitamin D", Amount: "1 tablet", Times: []string{"morning"}},
		},
		Dietary: []dietaryEntry{
			{Time: "breakfast", Energy: 350},
			{Time: "lunch", Energy: 550},
			{Time: "snacks", Energy: 200},
			{Time: "dinner", Energy: 450},
		},
		Nutritions: nutritionSplit{Carbs: 40, Protein: 35, Fat: 25},
		Monitoring: []monitoringTask{
			{Name: "Blood Glucose", Times: []string{"before breakfast", "after dinner"}},
			{Name: "Blood Pressure", Times: []string{"morning", "night"}},
			{Name: "Weight", Times: []string{"weekly"}},
		},
		EnergyGoal: 1550,
		BMIGoal:    24,
		Hydration:  "6-8 glasses of water",
		Sleep:      "7-8 hours",
	},
}
