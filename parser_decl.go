package fastc

// Top-level item parsing.

func (p *Parser) parseItem() (Item, error) {
	var repr *Repr
	if p.check(TokenAtRepr) {
		r, err := p.parseReprAttr()
		if err != nil {
			return nil, err
		}
		repr = &r
	}

	isPub := false
	if p.check(TokenPub) {
		p.advance()
		isPub = true
	}

	switch p.current().Kind {
	case TokenFn:
		return p.parseFnDecl(false)
	case TokenUnsafe:
		p.advance()
		if p.check(TokenFn) {
			return p.parseFnDecl(true)
		}
		return nil, p.errorf("expected 'fn' after 'unsafe'")
	case TokenStruct:
		return p.parseStructDecl(repr)
	case TokenEnum:
		return p.parseEnumDecl(repr)
	case TokenConst:
		return p.parseConstDecl()
	case TokenOpaque:
		return p.parseOpaqueDecl()
	case TokenExtern:
		return p.parseExternBlock()
	case TokenUse:
		return p.parseUseDecl()
	case TokenMod:
		return p.parseModDecl(isPub)
	}
	return nil, p.errorf("expected top-level item")
}

func (p *Parser) parseReprAttr() (Repr, error) {
	if err := p.consume(TokenAtRepr, "expected '@repr'"); err != nil {
		return 0, err
	}
	if err := p.consume(TokenLParen, "expected '(' after '@repr'"); err != nil {
		return 0, err
	}

	var repr Repr
	tok := p.current()
	switch {
	case tok.Kind == TokenIdent && tok.Text == "C":
		repr = ReprC
	case tok.Kind == TokenI8:
		repr = ReprI8
	case tok.Kind == TokenU8:
		repr = ReprU8
	case tok.Kind == TokenI16:
		repr = ReprI16
	case tok.Kind == TokenU16:
		repr = ReprU16
	case tok.Kind == TokenI32:
		repr = ReprI32
	case tok.Kind == TokenU32:
		repr = ReprU32
	case tok.Kind == TokenI64:
		repr = ReprI64
	case tok.Kind == TokenU64:
		repr = ReprU64
	default:
		return 0, p.errorf("expected repr kind (C, i8, u8, etc.)")
	}
	p.advance()

	if err := p.consume(TokenRParen, "expected ')'"); err != nil {
		return 0, err
	}
	return repr, nil
}

func (p *Parser) parseFnDecl(isUnsafe bool) (*FnDecl, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenFn, "expected 'fn'"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenLParen, "expected '('"); err != nil {
		return nil, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenRParen, "expected ')'"); err != nil {
		return nil, err
	}
	if err := p.consume(TokenArrow, "expected '->'"); err != nil {
		return nil, err
	}
	returnType, err := p.parseType()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FnDecl{
		IsUnsafe:   isUnsafe,
		Name:       name,
		Params:     params,
		ReturnType: returnType,
		Body:       body,
		span:       NewSpan(start, p.previousSpan().End),
	}, nil
}

func (p *Parser) parseFnProto(isUnsafe bool) (*FnProto, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenFn, "expected 'fn'"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenLParen, "expected '('"); err != nil {
		return nil, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenRParen, "expected ')'"); err != nil {
		return nil, err
	}
	if err := p.consume(TokenArrow, "expected '->'"); err != nil {
		return nil, err
	}
	returnType, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenSemi, "expected ';'"); err != nil {
		return nil, err
	}
	return &FnProto{
		IsUnsafe:   isUnsafe,
		Name:       name,
		Params:     params,
		ReturnType: returnType,
		span:       NewSpan(start, p.previousSpan().End),
	}, nil
}

func (p *Parser) parseParamList() ([]Param, error) {
	var params []Param
	if p.check(TokenRParen) {
		return params, nil
	}
	for {
		paramStart := p.currentSpan().Start
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.consume(TokenColon, "expected ':'"); err != nil {
			return nil, err
		}
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, Param{
			Name: name,
			Type: ty,
			span: NewSpan(paramStart, p.previousSpan().End),
		})
		if !p.check(TokenComma) {
			return params, nil
		}
		p.advance()
	}
}

func (p *Parser) parseStructDecl(repr *Repr) (*StructDecl, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenStruct, "expected 'struct'"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenLBrace, "expected '{'"); err != nil {
		return nil, err
	}

	var fields []Field
	for !p.check(TokenRBrace) && !p.atEnd() {
		fieldStart := p.currentSpan().Start
		fieldName, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.consume(TokenColon, "expected ':'"); err != nil {
			return nil, err
		}
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{
			Name: fieldName,
			Type: ty,
			span: NewSpan(fieldStart, p.previousSpan().End),
		})
		if p.check(TokenComma) {
			p.advance()
		} else {
			break
		}
	}

	if err := p.consume(TokenRBrace, "expected '}'"); err != nil {
		return nil, err
	}
	return &StructDecl{
		Repr:   repr,
		Name:   name,
		Fields: fields,
		span:   NewSpan(start, p.previousSpan().End),
	}, nil
}

func (p *Parser) parseEnumDecl(repr *Repr) (*EnumDecl, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenEnum, "expected 'enum'"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenLBrace, "expected '{'"); err != nil {
		return nil, err
	}

	var variants []Variant
	for !p.check(TokenRBrace) && !p.atEnd() {
		varStart := p.currentSpan().Start
		varName, err := p.expectIdent()
		if err != nil {
			return nil, err
		}

		var fields []TypeExpr
		if p.check(TokenLParen) {
			p.advance()
			if !p.check(TokenRParen) {
				ty, err := p.parseType()
				if err != nil {
					return nil, err
				}
				fields = append(fields, ty)
				for p.check(TokenComma) {
					p.advance()
					if p.check(TokenRParen) {
						break
					}
					ty, err := p.parseType()
					if err != nil {
						return nil, err
					}
					fields = append(fields, ty)
				}
			}
			if err := p.consume(TokenRParen, "expected ')'"); err != nil {
				return nil, err
			}
		}

		variants = append(variants, Variant{
			Name:   varName,
			Fields: fields,
			span:   NewSpan(varStart, p.previousSpan().End),
		})

		if p.check(TokenComma) {
			p.advance()
		} else {
			break
		}
	}

	if err := p.consume(TokenRBrace, "expected '}'"); err != nil {
		return nil, err
	}
	return &EnumDecl{
		Repr:     repr,
		Name:     name,
		Variants: variants,
		span:     NewSpan(start, p.previousSpan().End),
	}, nil
}

func (p *Parser) parseConstDecl() (*ConstDecl, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenConst, "expected 'const'"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenColon, "expected ':'"); err != nil {
		return nil, err
	}
	ty, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenEq, "expected '='"); err != nil {
		return nil, err
	}
	value, err := p.parseConstExpr()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenSemi, "expected ';'"); err != nil {
		return nil, err
	}
	return &ConstDecl{
		Name:  name,
		Type:  ty,
		Value: value,
		span:  NewSpan(start, p.previousSpan().End),
	}, nil
}

func (p *Parser) parseOpaqueDecl() (*OpaqueDecl, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenOpaque, "expected 'opaque'"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenSemi, "expected ';'"); err != nil {
		return nil, err
	}
	return &OpaqueDecl{Name: name, span: NewSpan(start, p.previousSpan().End)}, nil
}

func (p *Parser) parseExternBlock() (*ExternBlock, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenExtern, "expected 'extern'"); err != nil {
		return nil, err
	}

	tok := p.current()
	if tok.Kind != TokenStringLit {
		return nil, p.errorf("expected ABI string (e.g., \"C\")")
	}
	abi := tok.Text
	p.advance()

	if err := p.consume(TokenLBrace, "expected '{'"); err != nil {
		return nil, err
	}

	var items []ExternItem
	for !p.check(TokenRBrace) && !p.atEnd() {
		var repr *Repr
		if p.check(TokenAtRepr) {
			r, err := p.parseReprAttr()
			if err != nil {
				return nil, err
			}
			repr = &r
		}

		var item ExternItem
		var err error
		switch p.current().Kind {
		case TokenFn:
			item, err = p.parseFnProto(false)
		case TokenUnsafe:
			p.advance()
			item, err = p.parseFnProto(true)
		case TokenStruct:
			item, err = p.parseStructDecl(repr)
		case TokenEnum:
			item, err = p.parseEnumDecl(repr)
		case TokenOpaque:
			item, err = p.parseOpaqueDecl()
		default:
			return nil, p.errorf("expected extern item")
		}
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := p.consume(TokenRBrace, "expected '}'"); err != nil {
		return nil, err
	}
	return &ExternBlock{
		ABI:   abi,
		Items: items,
		span:  NewSpan(start, p.previousSpan().End),
	}, nil
}

// parseUseDecl handles:
//
//	use path::to::item;
//	use path::to::{item1, item2};
//	use path::to::*;
//	use module;
func (p *Parser) parseUseDecl() (*UseDecl, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenUse, "expected 'use'"); err != nil {
		return nil, err
	}

	var path []string
	head, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	path = append(path, head)

	for p.check(TokenColonColon) {
		p.advance()

		if p.check(TokenStar) {
			p.advance()
			if err := p.consume(TokenSemi, "expected ';'"); err != nil {
				return nil, err
			}
			return &UseDecl{
				Path:  path,
				Items: &UseGlob{},
				span:  NewSpan(start, p.previousSpan().End),
			}, nil
		}

		if p.check(TokenLBrace) {
			p.advance()
			var names []string
			if !p.check(TokenRBrace) {
				name, err := p.expectIdent()
				if err != nil {
					return nil, err
				}
				names = append(names, name)
				for p.check(TokenComma) {
					p.advance()
					if p.check(TokenRBrace) {
						break
					}
					name, err := p.expectIdent()
					if err != nil {
						return nil, err
					}
					names = append(names, name)
				}
			}
			if err := p.consume(TokenRBrace, "expected '}'"); err != nil {
				return nil, err
			}
			if err := p.consume(TokenSemi, "expected ';'"); err != nil {
				return nil, err
			}
			return &UseDecl{
				Path:  path,
				Items: &UseMultiple{Names: names},
				span:  NewSpan(start, p.previousSpan().End),
			}, nil
		}

		seg, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		path = append(path, seg)
	}

	if err := p.consume(TokenSemi, "expected ';'"); err != nil {
		return nil, err
	}
	span := NewSpan(start, p.previousSpan().End)

	// A bare single-segment path imports the module itself; otherwise
	// the last segment is the imported item.
	if len(path) == 1 {
		return &UseDecl{Path: path, Items: &UseModule{}, span: span}, nil
	}
	item := path[len(path)-1]
	return &UseDecl{
		Path:  path[:len(path)-1],
		Items: &UseSingle{Name: item},
		span:  span,
	}, nil
}

// parseModDecl handles `mod name;` (load from file) and
// `mod name { … }` (inline).
func (p *Parser) parseModDecl(isPub bool) (*ModDecl, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenMod, "expected 'mod'"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	var body []Item
	loaded := false
	if p.check(TokenLBrace) {
		p.advance()
		for !p.check(TokenRBrace) && !p.atEnd() {
			item, err := p.parseItem()
			if err != nil {
				return nil, err
			}
			body = append(body, item)
		}
		if err := p.consume(TokenRBrace, "expected '}'"); err != nil {
			return nil, err
		}
		loaded = true
	} else {
		if err := p.consume(TokenSemi, "expected ';' or '{'"); err != nil {
			return nil, err
		}
	}

	return &ModDecl{
		IsPub:  isPub,
		Name:   name,
		Body:   body,
		Loaded: loaded,
		span:   NewSpan(start, p.previousSpan().End),
	}, nil
}
