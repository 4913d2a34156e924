package fastc

// Statement parsing.

func (p *Parser) parseStmt() (Stmt, error) {
	start := p.currentSpan().Start

	switch p.current().Kind {
	case TokenLet:
		return p.parseLetStmt()
	case TokenIf:
		return p.parseIfStmt()
	case TokenWhile:
		return p.parseWhileStmt()
	case TokenFor:
		return p.parseForStmt()
	case TokenSwitch:
		return p.parseSwitchStmt()
	case TokenReturn:
		return p.parseReturnStmt()
	case TokenBreak:
		p.advance()
		if err := p.consume(TokenSemi, "expected ';' after 'break'"); err != nil {
			return nil, err
		}
		return &BreakStmt{span: NewSpan(start, p.previousSpan().End)}, nil
	case TokenContinue:
		p.advance()
		if err := p.consume(TokenSemi, "expected ';' after 'continue'"); err != nil {
			return nil, err
		}
		return &ContinueStmt{span: NewSpan(start, p.previousSpan().End)}, nil
	case TokenDefer:
		return p.parseDeferStmt()
	case TokenUnsafe:
		return p.parseUnsafeBlock()
	case TokenDiscard:
		return p.parseDiscardStmt()
	case TokenLBrace:
		return p.parseBlock()
	}
	return p.parseExprOrAssignStmt()
}

func (p *Parser) parseLetStmt() (Stmt, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenLet, "expected 'let'"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenColon, "expected ':' after variable name"); err != nil {
		return nil, err
	}
	ty, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenEq, "expected '=' in let statement"); err != nil {
		return nil, err
	}
	init, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenSemi, "expected ';'"); err != nil {
		return nil, err
	}
	return &LetStmt{
		Name: name,
		Type: ty,
		Init: init,
		span: NewSpan(start, p.previousSpan().End),
	}, nil
}

func (p *Parser) parseIfStmt() (Stmt, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenIf, "expected 'if'"); err != nil {
		return nil, err
	}

	// if let name = unwrap_checked(expr) { … } else { … }
	if p.check(TokenLet) {
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.consume(TokenEq, "expected '=' in if-let"); err != nil {
			return nil, err
		}
		if err := p.consume(TokenUnwrapChecked, "expected 'unwrap_checked' in if-let"); err != nil {
			return nil, err
		}
		if err := p.consume(TokenLParen, "expected '(' after 'unwrap_checked'"); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.consume(TokenRParen, "expected ')'"); err != nil {
			return nil, err
		}

		then, err := p.parseBlock()
		if err != nil {
			return nil, err
		}

		var elseBlock *Block
		if p.check(TokenElse) {
			p.advance()
			elseBlock, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		}

		return &IfLetStmt{
			Name: name,
			Expr: expr,
			Then: then,
			Else: elseBlock,
			span: NewSpan(start, p.previousSpan().End),
		}, nil
	}

	if err := p.consume(TokenLParen, "expected '(' after 'if'"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenRParen, "expected ')'"); err != nil {
		return nil, err
	}

	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	var elseStmt Stmt
	if p.check(TokenElse) {
		p.advance()
		if p.check(TokenIf) {
			elseStmt, err = p.parseIfStmt()
		} else {
			elseStmt, err = p.parseBlock()
		}
		if err != nil {
			return nil, err
		}
	}

	return &IfStmt{
		Cond: cond,
		Then: then,
		Else: elseStmt,
		span: NewSpan(start, p.previousSpan().End),
	}, nil
}

func (p *Parser) parseWhileStmt() (Stmt, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenWhile, "expected 'while'"); err != nil {
		return nil, err
	}
	if err := p.consume(TokenLParen, "expected '(' after 'while'"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenRParen, "expected ')'"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{
		Cond: cond,
		Body: body,
		span: NewSpan(start, p.previousSpan().End),
	}, nil
}

func (p *Parser) parseForStmt() (Stmt, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenFor, "expected 'for'"); err != nil {
		return nil, err
	}
	if err := p.consume(TokenLParen, "expected '(' after 'for'"); err != nil {
		return nil, err
	}

	var init ForInit
	if !p.check(TokenSemi) {
		if p.check(TokenLet) {
			p.advance()
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
			initExpr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			init = &ForInitLet{Name: name, Type: ty, Init: initExpr}
		} else {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if p.check(TokenEq) {
				p.advance()
				rhs, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				init = &ForInitAssign{LHS: expr, RHS: rhs}
			} else {
				init = &ForInitCall{Call: expr}
			}
		}
	}
	if err := p.consume(TokenSemi, "expected ';' after for init"); err != nil {
		return nil, err
	}

	var cond Expr
	if !p.check(TokenSemi) {
		var err error
		cond, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if err := p.consume(TokenSemi, "expected ';' after for condition"); err != nil {
		return nil, err
	}

	var step ForStep
	if !p.check(TokenRParen) {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.check(TokenEq) {
			p.advance()
			rhs, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			step = &ForStepAssign{LHS: expr, RHS: rhs}
		} else {
			step = &ForStepCall{Call: expr}
		}
	}
	if err := p.consume(TokenRParen, "expected ')'"); err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ForStmt{
		Init: init,
		Cond: cond,
		Step: step,
		Body: body,
		span: NewSpan(start, p.previousSpan().End),
	}, nil
}

func (p *Parser) parseSwitchStmt() (Stmt, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenSwitch, "expected 'switch'"); err != nil {
		return nil, err
	}
	if err := p.consume(TokenLParen, "expected '(' after 'switch'"); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenRParen, "expected ')'"); err != nil {
		return nil, err
	}
	if err := p.consume(TokenLBrace, "expected '{'"); err != nil {
		return nil, err
	}

	var cases []Case
	var def *SwitchDefault

	for !p.check(TokenRBrace) && !p.atEnd() {
		switch {
		case p.check(TokenCase):
			caseStart := p.currentSpan().Start
			p.advance()
			value, err := p.parseConstExpr()
			if err != nil {
				return nil, err
			}
			if err := p.consume(TokenColon, "expected ':' after case value"); err != nil {
				return nil, err
			}
			stmts, err := p.parseCaseBody()
			if err != nil {
				return nil, err
			}
			cases = append(cases, Case{
				Value: value,
				Stmts: stmts,
				span:  NewSpan(caseStart, p.previousSpan().End),
			})

		case p.check(TokenDefault):
			p.advance()
			if err := p.consume(TokenColon, "expected ':' after 'default'"); err != nil {
				return nil, err
			}
			stmts, err := p.parseCaseBody()
			if err != nil {
				return nil, err
			}
			def = &SwitchDefault{Stmts: stmts}

		default:
			return nil, p.errorf("expected 'case' or 'default'")
		}
	}

	if err := p.consume(TokenRBrace, "expected '}'"); err != nil {
		return nil, err
	}
	return &SwitchStmt{
		Expr:    expr,
		Cases:   cases,
		Default: def,
		span:    NewSpan(start, p.previousSpan().End),
	}, nil
}

func (p *Parser) parseCaseBody() ([]Stmt, error) {
	var stmts []Stmt
	for !p.check(TokenCase) && !p.check(TokenDefault) && !p.check(TokenRBrace) && !p.atEnd() {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (p *Parser) parseReturnStmt() (Stmt, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenReturn, "expected 'return'"); err != nil {
		return nil, err
	}

	var value Expr
	if !p.check(TokenSemi) {
		var err error
		value, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if err := p.consume(TokenSemi, "expected ';'"); err != nil {
		return nil, err
	}
	return &ReturnStmt{Value: value, span: NewSpan(start, p.previousSpan().End)}, nil
}

func (p *Parser) parseDeferStmt() (Stmt, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenDefer, "expected 'defer'"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &DeferStmt{Body: body, span: NewSpan(start, p.previousSpan().End)}, nil
}

func (p *Parser) parseUnsafeBlock() (Stmt, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenUnsafe, "expected 'unsafe'"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &UnsafeStmt{Body: body, span: NewSpan(start, p.previousSpan().End)}, nil
}

func (p *Parser) parseDiscardStmt() (Stmt, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenDiscard, "expected 'discard'"); err != nil {
		return nil, err
	}
	if err := p.consume(TokenLParen, "expected '(' after 'discard'"); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.consume(TokenRParen, "expected ')'"); err != nil {
		return nil, err
	}
	if err := p.consume(TokenSemi, "expected ';'"); err != nil {
		return nil, err
	}
	return &DiscardStmt{X: expr, span: NewSpan(start, p.previousSpan().End)}, nil
}

func (p *Parser) parseExprOrAssignStmt() (Stmt, error) {
	start := p.currentSpan().Start
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if p.check(TokenEq) {
		p.advance()
		rhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.consume(TokenSemi, "expected ';'"); err != nil {
			return nil, err
		}
		return &AssignStmt{
			LHS:  expr,
			RHS:  rhs,
			span: NewSpan(start, p.previousSpan().End),
		}, nil
	}

	if err := p.consume(TokenSemi, "expected ';'"); err != nil {
		return nil, err
	}
	return &ExprStmt{X: expr, span: NewSpan(start, p.previousSpan().End)}, nil
}

func (p *Parser) parseBlock() (*Block, error) {
	start := p.currentSpan().Start
	if err := p.consume(TokenLBrace, "expected '{'"); err != nil {
		return nil, err
	}

	var stmts []Stmt
	for !p.check(TokenRBrace) && !p.atEnd() {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}

	if err := p.consume(TokenRBrace, "expected '}'"); err != nil {
		return nil, err
	}
	return &Block{Stmts: stmts, span: NewSpan(start, p.previousSpan().End)}, nil
}
