package mockserver

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// collectionDef describes one REST collection of the mock backend.
type collectionDef struct {
	path     string
	required []string
}

var collectionDefs = []collectionDef{
	{path: "/etudiants/", required: []string{"matricule", "nom", "prenom", "email"}},
	{path: "/enseignants/", required: []string{"matricule", "nom", "prenom", "email"}},
	{path: "/departements/", required: []string{"code", "nom"}},
	{path: "/filieres/", required: []string{"code", "nom"}},
	{path: "/cours/", required: []string{"code", "intitule"}},
	{path: "/emplois-du-temps/", required: []string{"cours", "jour", "heure_debut", "heure_fin"}},
	{path: "/bibliotheque/livres/", required: []string{"titre", "auteur"}},
	{path: "/bibliotheque/emprunts/", required: []string{"livre", "etudiant"}},
	{path: "/presences/", required: []string{"etudiant", "cours", "date", "statut"}},
	{path: "/documents/", required: []string{"titre"}},
	{path: "/templates/", required: []string{"nom"}},
	{path: "/messages/", required: []string{"objet", "contenu"}},
	{path: "/salles/", required: []string{"code"}},
}

type item = map[string]any

// collection is an in-memory table keyed by id.
type collection struct {
	def    collectionDef
	mu     sync.RWMutex
	nextID int
	items  map[int]item
}

func newCollection(def collectionDef) *collection {
	return &collection{def: def, nextID: 1, items: make(map[int]item)}
}

// missing returns the field errors of a payload lacking required fields.
func (c *collection) missing(it item) map[string][]string {
	errs := map[string][]string{}
	for _, f := range c.def.required {
		v, ok := it[f]
		if !ok || v == nil || v == "" {
			errs[f] = []string{"This field is required."}
		}
	}
	return errs
}

func (c *collection) create(it item) item {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := toInt(it["id"]); ok && id >= c.nextID {
		c.nextID = id
	} else {
		it["id"] = c.nextID
	}
	id, _ := toInt(it["id"])
	c.items[id] = it
	c.nextID = id + 1
	return copyItem(it)
}

func (c *collection) get(id int) (item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[id]
	if !ok {
		return nil, false
	}
	return copyItem(it), true
}

// update replaces the item, or merges into it when partial is set.
func (c *collection) update(id int, in item, partial bool) (item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.items[id]
	if !ok {
		return nil, false
	}
	if !partial {
		cur = item{}
	}
	for k, v := range in {
		cur[k] = v
	}
	cur["id"] = id
	c.items[id] = cur
	return copyItem(cur), true
}

func (c *collection) delete(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	return true
}

// list returns the items matching every filter, ordered by id. search matches any string field.
func (c *collection) list(filters map[string]string, search string) []item {
	c.mu.RLock()
	defer c.mu.RUnlock()

	search = strings.ToLower(search)
	out := make([]item, 0, len(c.items))
	for _, it := range c.items {
		if matches(it, filters, search) {
			out = append(out, copyItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := toInt(out[i]["id"])
		b, _ := toInt(out[j]["id"])
		return a < b
	})
	return out
}

func matches(it item, filters map[string]string, search string) bool {
	for k, want := range filters {
		v, ok := it[k]
		if !ok || fmt.Sprint(v) != want {
			return false
		}
	}
	if search == "" {
		return true
	}
	for _, v := range it {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), search) {
			return true
		}
	}
	return false
}

func copyItem(it item) item {
	cp := make(item, len(it))
	for k, v := range it {
		cp[k] = v
	}
	return cp
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}

// seed fills the collections with a small data set.
func seed(collections map[string]*collection) {
	add := func(path string, items ...item) {
		for _, it := range items {
			collections[path].create(it)
		}
	}
	add("/departements/",
		item{"code": "INFO", "nom": "Informatique"},
		item{"code": "MATH", "nom": "Mathématiques"},
	)
	add("/filieres/", item{"code": "L-INFO", "nom": "Licence Informatique", "departement": 1, "niveau": "licence"})
	add("/salles/",
		item{"code": "A101", "nom": "Amphi A", "capacite": 300, "type": "amphi", "batiment": "A"},
		item{"code": "B204", "nom": "Salle B204", "capacite": 40, "type": "td", "batiment": "B"},
	)
	add("/enseignants/", item{"matricule": "ENS-001", "nom": "Sow", "prenom": "Mamadou", "email": "m.sow@univ.example", "grade": "MCF", "departement": 1})
	add("/etudiants/",
		item{"id": 42, "matricule": "ETU-0042", "nom": "Ndiaye", "prenom": "Fatou", "email": "f.ndiaye@univ.example", "filiere": 1, "niveau": "L2"},
		item{"matricule": "ETU-0043", "nom": "Ba", "prenom": "Ousmane", "email": "o.ba@univ.example", "filiere": 1, "niveau": "L1"},
	)
	add("/cours/", item{"code": "INF201", "intitule": "Algorithmique", "credits": 6, "enseignant": 1, "filiere": 1, "semestre": "S3"})
	add("/emplois-du-temps/", item{"cours": 1, "salle": 1, "jour": "lundi", "heure_debut": "08:00", "heure_fin": "10:00"})
	add("/bibliotheque/livres/", item{"isbn": "978-2100545261", "titre": "Introduction à l'algorithmique", "auteur": "Cormen", "exemplaires": 4})
	add("/templates/", item{"nom": "Attestation de scolarité", "type": "attestation", "contenu": "Nous certifions que {{nom}} {{prenom}} est inscrit(e)."})
	add("/documents/", item{"titre": "Relevé de notes S3", "type": "releve", "etudiant": 42, "fichier": "releve-s3.pdf"})
}
