package univ

// Student is an enrolled student, /etudiants/.
type Student struct {
	ID            int    `json:"id,omitempty"`
	Matricule     string `json:"matricule" validate:"required"`
	Nom           string `json:"nom" validate:"required"`
	Prenom        string `json:"prenom" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	DateNaissance string `json:"date_naissance,omitempty"`
	Filiere       int    `json:"filiere,omitempty"`
	Niveau        string `json:"niveau,omitempty"`
}

// Teacher is a member of the teaching staff, /enseignants/.
type Teacher struct {
	ID          int    `json:"id,omitempty"`
	Matricule   string `json:"matricule" validate:"required"`
	Nom         string `json:"nom" validate:"required"`
	Prenom      string `json:"prenom" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Grade       string `json:"grade,omitempty"`
	Departement int    `json:"departement,omitempty"`
	Specialite  string `json:"specialite,omitempty"`
}

// Department /departements/.
type Department struct {
	ID   int    `json:"id,omitempty"`
	Code string `json:"code" validate:"required"`
	Nom  string `json:"nom" validate:"required"`
	Chef int    `json:"chef,omitempty"`
}

// Program is a degree track (filière), /filieres/.
type Program struct {
	ID          int    `json:"id,omitempty"`
	Code        string `json:"code" validate:"required"`
	Nom         string `json:"nom" validate:"required"`
	Departement int    `json:"departement,omitempty"`
	Niveau      string `json:"niveau,omitempty"`
}

// Course /cours/.
type Course struct {
	ID         int    `json:"id,omitempty"`
	Code       string `json:"code" validate:"required"`
	Intitule   string `json:"intitule" validate:"required"`
	Credits    int    `json:"credits" validate:"gte=0"`
	Enseignant int    `json:"enseignant,omitempty"`
	Filiere    int    `json:"filiere,omitempty"`
	Semestre   string `json:"semestre,omitempty"`
}

// Schedule is one slot of a timetable, /emplois-du-temps/.
type Schedule struct {
	ID         int    `json:"id,omitempty"`
	Cours      int    `json:"cours" validate:"required"`
	Salle      int    `json:"salle,omitempty"`
	Jour       string `json:"jour" validate:"required,oneof=lundi mardi mercredi jeudi vendredi samedi"`
	HeureDebut string `json:"heure_debut" validate:"required"`
	HeureFin   string `json:"heure_fin" validate:"required"`
}

// Book /bibliotheque/livres/.
type Book struct {
	ID          int    `json:"id,omitempty"`
	ISBN        string `json:"isbn,omitempty"`
	Titre       string `json:"titre" validate:"required"`
	Auteur      string `json:"auteur" validate:"required"`
	Exemplaires int    `json:"exemplaires" validate:"gte=0"`
}

// Loan /bibliotheque/emprunts/.
type Loan struct {
	ID               int    `json:"id,omitempty"`
	Livre            int    `json:"livre" validate:"required"`
	Etudiant         int    `json:"etudiant" validate:"required"`
	DateEmprunt      string `json:"date_emprunt,omitempty"`
	DateRetourPrevue string `json:"date_retour_prevue,omitempty"`
	Rendu            bool   `json:"rendu"`
}

// Attendance is one presence record, /presences/.
type Attendance struct {
	ID       int    `json:"id,omitempty"`
	Etudiant int    `json:"etudiant" validate:"required"`
	Cours    int    `json:"cours" validate:"required"`
	Date     string `json:"date" validate:"required"`
	Statut   string `json:"statut" validate:"required,oneof=present absent retard excuse"`
}

// Document is a generated or uploaded administrative document, /documents/.
type Document struct {
	ID        int    `json:"id,omitempty"`
	Titre     string `json:"titre" validate:"required"`
	Type      string `json:"type,omitempty"`
	Etudiant  int    `json:"etudiant,omitempty"`
	Fichier   string `json:"fichier,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Template is a document template, /templates/.
type Template struct {
	ID      int    `json:"id,omitempty"`
	Nom     string `json:"nom" validate:"required"`
	Type    string `json:"type,omitempty"`
	Contenu string `json:"contenu,omitempty"`
}

// Message is an internal communication, /messages/.
type Message struct {
	ID            int    `json:"id,omitempty"`
	Objet         string `json:"objet" validate:"required"`
	Contenu       string `json:"contenu" validate:"required"`
	Destinataires []int  `json:"destinataires" validate:"min=1"`
	Expediteur    int    `json:"expediteur,omitempty"`
	EnvoyeLe      string `json:"envoye_le,omitempty"`
}

// Room /salles/.
type Room struct {
	ID       int    `json:"id,omitempty"`
	Code     string `json:"code" validate:"required"`
	Nom      string `json:"nom,omitempty"`
	Capacite int    `json:"capacite" validate:"gte=0"`
	Type     string `json:"type,omitempty"`
	Batiment string `json:"batiment,omitempty"`
}
