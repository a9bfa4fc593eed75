package models

// HarmonizedSample ist das Ergebnis der Harmonisierung eines einzelnen
// Roh-Datensatzes: kanonische Felder plus ein Passthrough-Bereich für
// nicht erkannte Roh-Schlüssel. Felder ohne Wert bleiben leer und werden
// im JSON weggelassen statt als null ausgegeben.
type HarmonizedSample struct {
	Title              string   `json:"title"`
	Sex                string   `json:"sex,omitempty"`
	Age                *float64 `json:"age,omitempty"`
	SpecimenPart       string   `json:"specimen_part,omitempty"`
	Subject            string   `json:"subject,omitempty"`
	DevelopmentalStage string   `json:"developmental_stage,omitempty"`
	Disease            string   `json:"disease,omitempty"`
	Compound           string   `json:"compound,omitempty"`
	Treatment          string   `json:"treatment,omitempty"`
	Time               string   `json:"time,omitempty"`

	Passthrough map[string]string `json:"passthrough,omitempty"`
}

// ToSample überträgt die kanonischen Felder in ein Sample-Modell.
// Der Passthrough-Bereich wird nicht persistiert.
func (h *HarmonizedSample) ToSample(accessionCode string) Sample {
	return Sample{
		AccessionCode:      accessionCode,
		Title:              h.Title,
		Sex:                h.Sex,
		Age:                h.Age,
		SpecimenPart:       h.SpecimenPart,
		Subject:            h.Subject,
		DevelopmentalStage: h.DevelopmentalStage,
		Disease:            h.Disease,
		Compound:           h.Compound,
		Treatment:          h.Treatment,
		Time:               h.Time,
	}
}
