package usersync

import (
	"fmt"
	"sort"
	"sync"
)

// The registries resolve configured type identifiers to constructors.
// Unknown identifiers are configuration errors raised at load time, before
// any row is processed. Registration and lookup are safe from concurrent
// runs.

type MappingFactory func(src IConfigSource, env MappingEnv) (IFieldMapping, error)

type StorageFactory func(env MappingEnv) (IFieldStorage, error)

// SourceFactory builds a row source from the run's data source locator and
// query string.
type SourceFactory func(dataSource string, query string) (IRowSource, error)

var (
	registryMu      sync.RWMutex
	mappingRegistry = make(map[string]MappingFactory)
	storageRegistry = make(map[string]StorageFactory)
	sourceRegistry  = make(map[string]SourceFactory)
)

func RegisterMapping(id string, factory MappingFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	mappingRegistry[id] = factory
}

func RegisterFieldStorage(id string, factory StorageFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	storageRegistry[id] = factory
}

func RegisterSource(id string, factory SourceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	sourceRegistry[id] = factory
}

func CreateMapping(id string, src IConfigSource, env MappingEnv) (IFieldMapping, error) {
	factory, known, ok := lookupFactory(mappingRegistry, id)
	if !ok {
		return nil, fmt.Errorf("unknown field mapping type %q, known types: %v", id, known)
	}
	return factory(src, env)
}

func CreateFieldStorage(id string, env MappingEnv) (IFieldStorage, error) {
	factory, known, ok := lookupFactory(storageRegistry, id)
	if !ok {
		return nil, fmt.Errorf("unknown field storage type %q, known types: %v", id, known)
	}
	return factory(env)
}

func CreateSource(id string, dataSource string, query string) (IRowSource, error) {
	factory, known, ok := lookupFactory(sourceRegistry, id)
	if !ok {
		return nil, fmt.Errorf("unknown data source type %q, known types: %v", id, known)
	}
	return factory(dataSource, query)
}

// lookupFactory releases the lock before the caller invokes the factory;
// mapping factories resolve their storage strategy through the registry
// themselves.
func lookupFactory[F any](registry map[string]F, id string) (factory F, known []string, ok bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if factory, ok = registry[id]; !ok {
		known = registeredIDs(registry)
	}
	return
}

func registeredIDs[F any](registry map[string]F) (ids []string) {
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return
}

func init() {
	RegisterMapping("ToText", NewTextMapping)
	RegisterMapping("ToBoolean", NewBooleanMapping)
	RegisterMapping("ToDate", NewDateMapping)
	RegisterMapping("ToNumber", NewNumberMapping)
	RegisterMapping("ToEmail", NewEmailMapping)
	RegisterMapping("ToListValueMatchOnDisplayName", NewListLookupMapping)
	RegisterMapping("ToListValueMatchOnFieldName", NewListLookupByFieldMapping)
	RegisterMapping("ToRoleMembership", NewRoleFlagMapping)

	RegisterFieldStorage("ProfileProperty", func(env MappingEnv) (IFieldStorage, error) {
		return &ProfilePropertyStorage{CheckThatPropertyExist: env.CheckThatPropertyExist}, nil
	})
	RegisterFieldStorage("ProfileCustomProperty", func(env MappingEnv) (IFieldStorage, error) {
		return &CustomPropertyStorage{CheckThatPropertyExist: env.CheckThatPropertyExist}, nil
	})
	RegisterFieldStorage("KeyedTableColumn", func(env MappingEnv) (IFieldStorage, error) {
		if env.KeyedTable == nil {
			return nil, fmt.Errorf("the keyed table storage requires a keyed table, but none is configured for this run")
		}
		return &KeyedTableStorage{Table: env.KeyedTable}, nil
	})
}
